package automation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Locators are the XPath queries used to drive the Tasy web UI. Every query
// is evaluated with DOM search, so CSS selectors work as well.
type Locators struct {
	// login
	LoginUser     string `yaml:"login_user"`
	LoginPassword string `yaml:"login_password"`
	LoginSubmit   string `yaml:"login_submit"`
	DialogOK      string `yaml:"dialog_ok"`
	GlobalSearch  string `yaml:"global_search"`

	LoadingMask string `yaml:"loading_mask"`

	// boletos
	BoletosFunction     string `yaml:"boletos_function"`
	BoletosFunctionName string `yaml:"boletos_function_name"`
	FilterToggle        string `yaml:"filter_toggle"`
	TitleInput          string `yaml:"title_input"`
	FilterButton        string `yaml:"filter_button"`
	CloseAlert          string `yaml:"close_alert"`
	GridRow             string `yaml:"grid_row"`
	MenuBoletos         string `yaml:"menu_boletos"`
	MenuSendEmail       string `yaml:"menu_send_email"`
	MenuSendEmailText   string `yaml:"menu_send_email_text"`
	RecipientInput      string `yaml:"recipient_input"`
	ConfirmBlue         string `yaml:"confirm_blue"`
	SentMarker          string `yaml:"sent_marker"`

	// own-resource authorizations
	AvatarButton          string `yaml:"avatar_button"`
	CurrentEstablishment  string `yaml:"current_establishment"`
	EstablishmentModal    string `yaml:"establishment_modal"`
	EstablishmentDropdown string `yaml:"establishment_dropdown"`
	EstablishmentOption   string `yaml:"establishment_option"` // fmt verb receives the establishment name
	EstablishmentOK       string `yaml:"establishment_ok"`
	AuthFunction          string `yaml:"auth_function"`
	AuthFunctionName      string `yaml:"auth_function_name"`
	AuthFilterToggle      string `yaml:"auth_filter_toggle"`
	SequenceInput         string `yaml:"sequence_input"`
	AuthFilterButton      string `yaml:"auth_filter_button"`
}

// DefaultLocators returns the locators for the current Tasy HTML5 release
func DefaultLocators() Locators {
	return Locators{
		LoginUser:     "//input[@id='loginUsername']",
		LoginPassword: "//input[@id='loginPassword' or @name='password']",
		LoginSubmit:   "(//input[@type='submit' or @type='button'] | //*[contains(@class,'btn-login')])[1]",
		DialogOK:      "//*[@id='w-dialog-box-ok-button']",
		GlobalSearch:  "//input[@ng-model='search']",

		LoadingMask: "//*[contains(@class,'w-loading-mask')]",

		BoletosFunction:     "//span[contains(@class,'w-feature-app__name') and contains(text(),'Manutenção de Títulos a Receber')]",
		BoletosFunctionName: "Manutenção de Títulos a Receber",
		FilterToggle:        "//tasy-wlabel[contains(@class,'filter-icon')]",
		TitleInput:          "//*[@name='NR_TITULO']",
		FilterButton:        "//button[contains(@class,'wfilter-button') and contains(text(),'Filtrar')]",
		CloseAlert:          "//button[contains(@class,'btn-gray') and .//span[normalize-space()='Fechar']]",
		GridRow:             "//div[contains(@class,'datagrid-cell-content-wrapper')]",
		MenuBoletos:         "//div[contains(@class,'wpopupmenu__label') and normalize-space()='Boletos']/parent::li",
		MenuSendEmail:       "//li[@uib-tooltip='Enviar por e-mail']",
		MenuSendEmailText:   "//div[contains(text(),'Enviar por e-mail')]",
		RecipientInput:      "//*[@name='DS_RECIPIENT_EMAILS']",
		ConfirmBlue:         "//button[contains(@class,'btn-blue') and .//span[normalize-space()='OK']]",
		SentMarker:          "//div[contains(text(),'E-mail enviado com sucesso')]",

		AvatarButton:          "//*[contains(@class,'w-header-avatar__title')]",
		CurrentEstablishment:  "//*[contains(@class,'w-header-option__value')]",
		EstablishmentModal:    "//*[contains(@class,'ngdialog-content')]",
		EstablishmentDropdown: "(//div[contains(@class,'w-listbox-dropdown')])[2]",
		EstablishmentOption:   "//span[contains(text(),'%s')]",
		EstablishmentOK:       "//div[contains(@class,'ngdialog-content')]//button[normalize-space()='Ok']",
		AuthFunction:          "//span[contains(@class,'w-feature-app__name') and normalize-space()='Autorização Convênio']",
		AuthFunctionName:      "Autorização Convênio",
		AuthFilterToggle:      "//div[contains(@class,'w-label-container__empty-text')]",
		SequenceInput:         "//*[@name='NR_SEQUENCIA']",
		AuthFilterButton:      "//button[contains(text(),'Filtrar')]",
	}
}

// establishmentOption renders the option locator for a named establishment
func (l Locators) establishmentOption(name string) string {
	return fmt.Sprintf(l.EstablishmentOption, name)
}

// LoadLocators reads a YAML override file on top of the defaults. Keys that
// are absent keep their default query.
func LoadLocators(path string) (Locators, error) {
	loc := DefaultLocators()
	if path == "" {
		return loc, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return loc, fmt.Errorf("read locators file: %w", err)
	}
	if err := yaml.Unmarshal(data, &loc); err != nil {
		return loc, fmt.Errorf("parse locators file: %w", err)
	}
	return loc, nil
}
