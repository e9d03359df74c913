package cluster

import (
	"encoding/json"
	"fmt"

	"github.com/ridgeline-io/ridgeline/pkg/config"
)

// renderTemplate builds the stack template for a resolved configuration.
// Every flat storage key becomes a template parameter; the values that later
// operations need to recover (config version, artifact location, scheduler)
// are exposed as stack outputs.
func renderTemplate(name string, root *config.Root) (string, error) {
	flat := root.ToFlat()

	parameters := make(map[string]interface{}, len(flat))
	for key := range flat {
		parameters[parameterName(key)] = map[string]string{"Type": "String"}
	}

	outputs := map[string]interface{}{
		"ConfigVersion":  output(root.Version),
		"ArtifactPrefix": output(root.RootSection().Value("ArtifactPrefix").String()),
		"ResourceBucket": output(root.RootSection().Value("ResourceBucket").String()),
	}
	if scheduling := root.DefaultSection("scheduling"); scheduling != nil {
		outputs["Scheduler"] = output(scheduling.Value("Scheduler").String())
	}

	template := map[string]interface{}{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Description":              fmt.Sprintf("Ridgeline cluster %s", name),
		"Parameters":               parameters,
		"Outputs":                  outputs,
	}

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return string(data), nil
}

// stackParameters renders the flat storage representation under the
// template's parameter names.
func stackParameters(root *config.Root) map[string]string {
	flat := root.ToFlat()
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		out[parameterName(k)] = v
	}
	return out
}

func output(value string) map[string]string {
	return map[string]string{"Value": value}
}

// parameterName flattens a storage key into a template-safe identifier:
// Scheduling.SlurmQueues becomes SchedulingSlurmQueues,
// SharedStorage[scratch] becomes SharedStorageScratch.
func parameterName(key string) string {
	out := make([]rune, 0, len(key))
	upper := false
	for _, r := range key {
		switch r {
		case '.', '[', ']', '-', '_':
			upper = true
		default:
			if upper && r >= 'a' && r <= 'z' {
				r -= 'a' - 'A'
			}
			upper = false
			out = append(out, r)
		}
	}
	return string(out)
}
