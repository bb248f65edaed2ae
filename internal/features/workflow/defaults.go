package workflow

func threshold(v float64) *float64 { return &v }

// DefaultTemplates is the catalog a fresh installation starts with
func DefaultTemplates() []Template {
	return []Template{
		{
			ID:          "angebot_freigabe",
			Name:        "Angebot Freigabe",
			Description: "Freigabe für Angebote über 5.000€",
			Trigger:     TriggerDefinition{Type: TriggerAmount, Threshold: threshold(5000)},
			Steps: []StepDefinition{
				{ID: "step1", Role: "projektleiter", Name: "Projektleiter", TimeoutHours: 24},
				{ID: "step2", Role: "geschaeftsfuehrer", Name: "Geschäftsführer", TimeoutHours: 48},
			},
		},
		{
			ID:          "ausgabe_freigabe",
			Name:        "Ausgaben Freigabe",
			Description: "Freigabe für Ausgaben über 1.000€",
			Trigger:     TriggerDefinition{Type: TriggerAmount, Threshold: threshold(1000)},
			Steps: []StepDefinition{
				{ID: "step1", Role: "buchhaltung", Name: "Buchhaltung", TimeoutHours: 24},
				{ID: "step2", Role: "geschaeftsfuehrer", Name: "Geschäftsführer", TimeoutHours: 48},
			},
		},
		{
			ID:          "rabatt_freigabe",
			Name:        "Rabatt Freigabe",
			Description: "Freigabe für Rabatte über 15%",
			Trigger:     TriggerDefinition{Type: TriggerDiscount, Threshold: threshold(15)},
			Steps: []StepDefinition{
				{ID: "step1", Role: "vertriebsleiter", Name: "Vertriebsleiter", TimeoutHours: 12},
			},
		},
		{
			ID:          "rechnung_storno",
			Name:        "Rechnungs-Storno",
			Description: "Freigabe für Stornierung von Rechnungen",
			Trigger:     TriggerDefinition{Type: TriggerAction, Action: "storno"},
			Steps: []StepDefinition{
				{ID: "step1", Role: "buchhaltung", Name: "Buchhaltung", TimeoutHours: 24},
				{ID: "step2", Role: "geschaeftsfuehrer", Name: "Geschäftsführer", TimeoutHours: 48},
			},
		},
	}
}
