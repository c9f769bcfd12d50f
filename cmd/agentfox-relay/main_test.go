package main

import "testing"

func TestNativeHostFlagTogglesPackageState(t *testing.T) {
	orig := nativeHost
	defer func() { nativeHost = orig }()

	if err := rootCmd.PersistentFlags().Set("native-host", "true"); err != nil {
		t.Fatalf("set native-host flag: %v", err)
	}
	if !nativeHost {
		t.Error("expected --native-host to set the package-level nativeHost flag runRelay dispatches on")
	}
}
