package advisor

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/voltify/voltify/pkg/types"
)

var promptTemplate = template.Must(template.New("suggestions").Parse(
	`You are an AI energy advisor who provides personalized energy-saving recommendations to users based on their household data and usage patterns.

Analyze the following household data and provide a list of actionable suggestions to reduce energy consumption and save money. Make the suggestions very specific.
For example, instead of "Use less air conditioning", say "Adjust your AC temperature to 25°C between 2 PM and 6 PM to save 15% on your energy bill".

Household Data: {{.HouseholdData}}
`))

// renderPrompt embeds data as indented JSON into the advisor prompt.
func renderPrompt(data types.HouseholdData) (string, error) {
	householdJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal household data: %w", err)
	}

	var b strings.Builder
	err = promptTemplate.Execute(&b, struct {
		HouseholdData string
	}{
		HouseholdData: string(householdJSON),
	})
	if err != nil {
		return "", fmt.Errorf("failed to render prompt: %w", err)
	}
	return b.String(), nil
}
