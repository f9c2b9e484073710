package main

import "os"

const defaultConfigName = "artifactflow.yaml"

// resolveConfigPath mirrors the teacher's profile-aware resolution,
// narrowed to ArtifactFlow's single-deployment model: an explicit flag
// wins, then ARTIFACTFLOW_CONFIG, then the default file name (which Load
// tolerates being absent — env vars alone are enough to boot).
func resolveConfigPath(flagValue string) string {
	if flagValue != "" && flagValue != defaultConfigName {
		return flagValue
	}
	if envPath := os.Getenv("ARTIFACTFLOW_CONFIG"); envPath != "" {
		return envPath
	}
	return flagValue
}

func configFileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
