package integration

import (
	"os"
	"path/filepath"
	"strconv"
)

// containersAvailable reports whether a container runtime is reachable,
// so the Mongo-backed tests can skip instead of fail on hosts without
// Docker or Podman.
func containersAvailable() bool {
	if os.Getenv("DOCKER_HOST") != "" {
		return true
	}

	candidates := []string{"/var/run/docker.sock"}
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		candidates = append(candidates, filepath.Join(runtimeDir, "podman", "podman.sock"))
	} else if uid := os.Getuid(); uid > 0 {
		candidates = append(candidates, "/run/user/"+strconv.Itoa(uid)+"/podman/podman.sock")
	}

	for _, sock := range candidates {
		if _, err := os.Stat(sock); err == nil {
			return true
		}
	}
	return false
}
