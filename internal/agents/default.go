package agents

const webhookBase = "https://ribtrnwb.rpcld.net/webhook/"

func strPtr(s string) *string { return &s }

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := New([]Category{
		{
			Name: "General",
			Agents: []Agent{{
				ID:         "main",
				Name:       "Main Agent",
				WebhookURL: webhookBase + "markless",
				IconKey:    strPtr("Bot"),
				Tagline:    strPtr("Your primary AI assistant."),
			}},
		},
		{
			Name: "Government",
			Agents: []Agent{
				{
					ID:         "pm",
					Name:       "Jordanian Prime Ministry",
					WebhookURL: webhookBase + "pm",
					ImageRef:   strPtr("/assets/agents/jpm.png"),
					Tagline:    strPtr("Leading Jordan's Progress."),
				},
				{
					ID:         "modee",
					Name:       "Ministry of Digital Economy and Entrepreneurship",
					WebhookURL: webhookBase + "modee",
					ImageRef:   strPtr("/assets/agents/modee.png"),
					Tagline:    strPtr("Powering Jordan's Digital Future."),
				},
			},
		},
		{
			Name: "NGOs",
			Agents: []Agent{
				{
					ID:         "cpf",
					Name:       "Crown Prince Foundation",
					WebhookURL: webhookBase + "cpf",
					ImageRef:   strPtr("/assets/agents/cpf.png"),
					Tagline:    strPtr("Inspiring Jordan's Youth."),
				},
				{
					ID:         "kafd",
					Name:       "King Abdullah Fund for Development",
					WebhookURL: webhookBase + "kafd",
					ImageRef:   strPtr("/assets/agents/kafd.png"),
					Tagline:    strPtr("Investing in Jordan's Potential."),
				},
			},
		},
	})
	if err != nil {
		panic("agents: invalid built-in catalog: " + err.Error())
	}
	return c
}
