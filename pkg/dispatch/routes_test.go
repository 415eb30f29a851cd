package dispatch

import (
	"reflect"
	"testing"
)

func TestCandidatesDedupeKeepsFirstOccurrence(t *testing.T) {
	got := Candidates([]string{"m1", "m2"}, "m1", []string{"m3", "m2"}, "m4")
	want := []string{"m1", "m2", "m3", "m4"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestCandidatesSkipsEmptyEntries(t *testing.T) {
	got := Candidates(nil, "", []string{"", "m1", ""}, "")
	want := []string{"m1"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestBuildRoutesVerifierFallsBackToIntentPrimary(t *testing.T) {
	routes := BuildRoutes(RouteInputs{
		IntentPrimary:  "m-intent",
		IntentFallback: []string{"m-fb"},
		DefaultBackend: "m-default",
		CodegenPrimary: "m-code",
	})

	verifier := routes[TaskIntentVerify]
	if len(verifier) == 0 || verifier[0] != "m-intent" {
		t.Fatalf("expected verifier to lead with intent primary, got %v", verifier)
	}
	// full intent list appended as the final tier
	found := false
	for _, b := range verifier {
		if b == "m-default" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected verifier list to include intent tier, got %v", verifier)
	}
}

func TestBuildRoutesRepairAndTerraformShareCodegenList(t *testing.T) {
	routes := BuildRoutes(RouteInputs{
		IntentPrimary:   "m-intent",
		CodegenPrimary:  "m-code",
		CodegenFallback: []string{"m-code-fb"},
	})

	codegen := routes[TaskCodegen]
	if !reflect.DeepEqual(routes[TaskCodegenRepair], codegen) {
		t.Fatalf("repair list diverged: %v vs %v", routes[TaskCodegenRepair], codegen)
	}
	if !reflect.DeepEqual(routes[TaskTerraformCodegen], codegen) {
		t.Fatalf("terraform list diverged: %v vs %v", routes[TaskTerraformCodegen], codegen)
	}
}

func TestForUnknownTaskUsesIntentList(t *testing.T) {
	routes := BuildRoutes(RouteInputs{
		IntentPrimary:  "m-intent",
		CodegenPrimary: "m-code",
	})

	got := routes.For("summarize")
	if !reflect.DeepEqual(got, routes[TaskIntentParse]) {
		t.Fatalf("expected intent-parse fallback, got %v", got)
	}
}
