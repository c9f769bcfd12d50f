package gateway

import (
	"testing"

	"github.com/Lemon9247/agentfox/internal/command"
)

func TestCatalogCoversEveryAction(t *testing.T) {
	g := &Gateway{}
	specs := g.catalog()

	wantActions := []command.Action{
		command.ActionNavigate, command.ActionNavigateBack, command.ActionScreenshot,
		command.ActionTabs, command.ActionClose, command.ActionResize, command.ActionSavePDF,
		command.ActionGetCookies, command.ActionGetBookmarks, command.ActionGetHistory,
		command.ActionNetworkRequests, command.ActionSnapshot, command.ActionClick,
		command.ActionType, command.ActionPressKey, command.ActionHover, command.ActionFillForm,
		command.ActionSelectOption, command.ActionEvaluate, command.ActionWaitFor,
		command.ActionPageContent,
	}

	seen := make(map[command.Action]bool, len(specs))
	for _, s := range specs {
		if s.tool.Name == "" {
			t.Error("catalog entry with empty tool name")
		}
		if s.formatter == nil {
			t.Errorf("tool %q has nil formatter", s.tool.Name)
		}
		seen[s.action] = true
	}

	for _, a := range wantActions {
		if !seen[a] {
			t.Errorf("catalog missing entry for action %q", a)
		}
	}
	if len(specs) != len(wantActions) {
		t.Errorf("catalog has %d entries, want %d", len(specs), len(wantActions))
	}
}

func TestCatalogToolNamesAreUnique(t *testing.T) {
	g := &Gateway{}
	names := map[string]bool{}
	for _, s := range g.catalog() {
		if names[s.tool.Name] {
			t.Errorf("duplicate tool name %q", s.tool.Name)
		}
		names[s.tool.Name] = true
	}
}
