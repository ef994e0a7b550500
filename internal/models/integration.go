package models

// IntegrationDescriptor is the document served at /integration.json
type IntegrationDescriptor struct {
	Data IntegrationData `json:"data"`
}

type IntegrationData struct {
	Date                IntegrationDate         `json:"date"`
	Descriptions        IntegrationDescriptions `json:"descriptions"`
	IntegrationCategory string                  `json:"integration_category"`
	IntegrationType     string                  `json:"integration_type"`
	IsActive            bool                    `json:"is_active"`
	KeyFeatures         []string                `json:"key_features"`
	Author              string                  `json:"author"`
	Website             string                  `json:"website"`
	Settings            []Setting               `json:"settings"`
	TickURL             string                  `json:"tick_url"`
}

type IntegrationDate struct {
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type IntegrationDescriptions struct {
	AppName         string `json:"app_name"`
	AppDescription  string `json:"app_description"`
	AppURL          string `json:"app_url"`
	AppLogo         string `json:"app_logo"`
	BackgroundColor string `json:"background_color"`
}
