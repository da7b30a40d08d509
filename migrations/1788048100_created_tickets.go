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

		collection := core.NewBaseCollection("tickets")

		collection.Fields.Add(
			&core.TextField{Name: "ticket_id", Required: true},
			&core.RelationField{
				Name:          "event",
				Required:      true,
				CollectionId:  events.Id,
				CascadeDelete: false,
				MaxSelect:     1,
			},
			&core.TextField{Name: "event_key", Required: true},
			&core.EmailField{Name: "owner_email"},
			&core.NumberField{Name: "quantity", OnlyInt: true, Required: true},
			&core.JSONField{Name: "seat_ids"},
			&core.NumberField{Name: "unit_price"},
			&core.NumberField{Name: "discount_percentage"},
			&core.NumberField{Name: "total_price"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"valid", "used"},
			},
			&core.TextField{Name: "promo_code"},
			&core.TextField{Name: "payment_ref"},
			&core.DateField{Name: "purchased_at"},
			&core.DateField{Name: "used_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_tickets_ticket_id", true, "ticket_id", "")
		collection.AddIndex("idx_tickets_event", false, "event", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("tickets")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
