package util

import (
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/empathlabs/aingest/pkg/container"
)

/*
   references:
   - https://no-color.org/
   - https://github.com/sitkevij/no_color
*/

// IsTerminal checks if stdout is a terminal using go-isatty
func IsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

// ShouldUseColors determines if coloured output should be used
func ShouldUseColors() bool {
	if noColor := os.Getenv("NO_COLOR"); noColor != "" {
		return false
	}

	if forceColor := os.Getenv("FORCE_COLOR"); forceColor != "" {
		return forceColor != "0"
	}

	if appColors := os.Getenv("AINGEST_FORCE_COLORS"); appColors != "" {
		return strings.ToLower(appColors) == "true"
	}

	// Container logs end up in collectors that choke on ANSI codes
	if container.IsContainerised() {
		return false
	}

	return IsTerminal()
}
