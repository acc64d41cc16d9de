package main

import "testing"

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	if err != nil || id != 42 {
		t.Fatalf("parseID(42) = %d, %v", id, err)
	}
	if _, err := parseID("not-a-number"); err == nil {
		t.Fatal("expected an error for a non-numeric id")
	}
}

func TestCommandTreeHasExpectedSubcommands(t *testing.T) {
	cmds := []string{"start", "stop", "restart", "list", "logs", "delete", "daemon"}
	built := map[string]bool{
		startCmd().Name():   true,
		stopCmd().Name():    true,
		restartCmd().Name(): true,
		listCmd().Name():    true,
		logsCmd().Name():    true,
		deleteCmd().Name():  true,
		daemonCmd().Name():  true,
	}
	for _, name := range cmds {
		if !built[name] {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}
