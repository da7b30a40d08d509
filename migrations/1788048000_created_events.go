package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("events")

		collection.Fields.Add(
			&core.TextField{Name: "title", Required: true},
			&core.TextField{Name: "description"},
			&core.TextField{Name: "location"},
			&core.TextField{Name: "event_key", Required: true},
			&core.DateField{Name: "start_time"},
			&core.NumberField{Name: "total_tickets", OnlyInt: true, Required: true},
			&core.NumberField{Name: "sold_tickets", OnlyInt: true},
			&core.NumberField{Name: "price"},
			&core.TextField{Name: "currency"},
			&core.SelectField{
				Name:      "status",
				Required:  true,
				MaxSelect: 1,
				Values:    []string{"active", "completed", "cancelled"},
			},
			&core.TextField{Name: "organizer"},
			&core.JSONField{Name: "seat_ids"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_events_event_key", true, "event_key", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("events")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
