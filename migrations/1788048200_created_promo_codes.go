package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("promo_codes")

		collection.Fields.Add(
			&core.RelationField{
				Name:         "event",
				Required:     true,
				CollectionId: events.Id,
				MaxSelect:    1,
			},
			&core.TextField{Name: "code", Required: true},
			&core.NumberField{Name: "discount_percentage", Required: true},
			&core.NumberField{Name: "ticket_limit", OnlyInt: true},
			&core.NumberField{Name: "used_count", OnlyInt: true},
			&core.BoolField{Name: "is_active"},
			&core.DateField{Name: "expires_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_promo_codes_event_code", true, "event, code", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("promo_codes")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
