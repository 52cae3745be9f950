package cmd

import "testing"

func TestRootCmdRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate"} {
		if !names[want] {
			t.Errorf("rootCmd is missing subcommand %q", want)
		}
	}
}

func TestRootCmdPersistentFlags(t *testing.T) {
	for _, name := range []string{"log-level", "log-dev", "log-file"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("rootCmd is missing persistent flag --%s", name)
		}
	}
}
