package dispatch

import (
	"testing"

	"github.com/zen-systems/infragate/pkg/config"
)

func TestRoutesFromSettingsAlternatePrefixGatedByProfile(t *testing.T) {
	settings := config.Defaults()
	settings.Profile = "balanced"
	settings.AltCodegenBackends = "google/gemini-2.0-pro"

	routes := RoutesFromSettings(settings)
	if routes[TaskCodegen][0] == "google/gemini-2.0-pro" {
		t.Fatalf("alternate prefix must not apply under balanced profile: %v", routes[TaskCodegen])
	}

	settings.Profile = "alternate"
	routes = RoutesFromSettings(settings)
	if routes[TaskCodegen][0] != "google/gemini-2.0-pro" {
		t.Fatalf("alternate prefix should lead the codegen list: %v", routes[TaskCodegen])
	}
}

func TestRoutesFromSettingsCoversAllTasks(t *testing.T) {
	routes := RoutesFromSettings(config.Defaults())

	for _, task := range []string{TaskIntentParse, TaskIntentVerify, TaskCodegen, TaskCodegenRepair, TaskTerraformCodegen} {
		if len(routes.For(task)) == 0 {
			t.Fatalf("task %s has no candidates", task)
		}
	}
}
