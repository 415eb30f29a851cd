package provision

import (
	"encoding/json"
	"fmt"
	"strings"
)

// buildFragmentPrompt constrains the model to emit only a runnable
// resource fragment: no provider configuration, no variable references,
// all values inlined from the supplied parameters.
func buildFragmentPrompt(action, resourceType string, params map[string]any) string {
	encoded, err := json.Marshal(params)
	if err != nil {
		encoded = []byte("{}")
	}

	var sb strings.Builder
	sb.WriteString("You are a Terraform HCL expert. Write ONLY valid HCL code.\n\n")
	sb.WriteString(fmt.Sprintf("Task: write Terraform configuration to %s an AWS %s.\n", action, resourceType))
	sb.WriteString(fmt.Sprintf("Parameters: %s\n\n", encoded))
	sb.WriteString("Constraints:\n")
	sb.WriteString("- Use the 'aws' provider.\n")
	sb.WriteString("- Do NOT include provider configuration.\n")
	sb.WriteString("- Output ONLY the 'resource' block.\n")
	sb.WriteString("- Do NOT use 'var.Name' references; hardcode all values directly from the provided parameters.\n")
	sb.WriteString("- Ensure resource names are unique.\n\n")
	sb.WriteString("Respond with valid HCL only. No markdown formatting.")
	return sb.String()
}
