// Package launcher starts the GeForce NOW and Discord clients when the
// daemon comes up before they do. Launching is best-effort: a client that
// cannot be found is reported, and the polling loop simply waits for the
// user to start it by hand.
package launcher

import (
	"log/slog"

	"tools.zach/dev/nowcord/internal/procs"
)

// Process-name substrings used to detect running clients.
const (
	geforceProcess = "geforcenow"
	discordProcess = "discord"
)

// GeForceRunning reports whether a GeForce NOW client process exists.
func GeForceRunning() bool {
	return procs.IsRunning(geforceProcess)
}

// DiscordRunning reports whether a Discord client process exists.
func DiscordRunning() bool {
	return procs.IsRunning(discordProcess)
}

// EnsureGeForce starts GeForce NOW unless it is already running.
func EnsureGeForce(log *slog.Logger) {
	if GeForceRunning() {
		return
	}
	if err := launchGeForce(); err != nil {
		log.Warn("could not launch GeForce NOW", "error", err)
		return
	}
	log.Info("launched GeForce NOW")
}

// EnsureDiscord starts Discord unless it is already running.
func EnsureDiscord(log *slog.Logger) {
	if DiscordRunning() {
		return
	}
	if err := launchDiscord(); err != nil {
		log.Warn("could not launch Discord", "error", err)
		return
	}
	log.Info("launched Discord")
}
