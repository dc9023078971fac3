package main

import (
	"tenantauth/internal/infra/persistence/model"

	"gorm.io/gen"
)

func main() {
	models := []any{
		model.OrganizationModel{},
		model.SubscriptionModel{},
		model.AccountModel{},
		model.SessionModel{},
	}

	g := gen.NewGenerator(gen.Config{
		OutPath: "./internal/infra/persistence/postgres/query",
		Mode:    gen.WithDefaultQuery | gen.WithQueryInterface,
	})

	g.ApplyBasic(models...)

	g.Execute()
}
