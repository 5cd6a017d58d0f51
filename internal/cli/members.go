package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/epidemic-mesh/epidemic/internal/daemon"
)

func init() {
	rootCmd.AddCommand(membersCmd)
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "List the members known to a running daemon",
	RunE:  runMembers,
}

// memberView is the subset of fields worth printing on a terminal; the
// daemon's /members endpoint returns the full epidemic.Member record.
type memberView struct {
	HostKey     string `json:"HostKey"`
	RemoteHost  string `json:"RemoteHost"`
	Incarnation uint64 `json:"Incarnation"`
	State       int    `json:"State"`
}

func runMembers(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath(cmd))
	if err != nil {
		return err
	}

	resp, err := http.Get(statusURL(cfg.Status.Addr, "/members"))
	if err != nil {
		return fmt.Errorf("contact daemon at %s: %w", cfg.Status.Addr, err)
	}
	defer resp.Body.Close()

	var members []memberView
	if err := json.NewDecoder(resp.Body).Decode(&members); err != nil {
		return fmt.Errorf("decode members: %w", err)
	}

	stateNames := []string{"alive", "suspect", "down", "left"}
	for _, m := range members {
		name := "unknown"
		if m.State >= 0 && m.State < len(stateNames) {
			name = stateNames[m.State]
		}
		fmt.Printf("%s  %-8s  incarnation=%d  %s\n", m.HostKey, name, m.Incarnation, m.RemoteHost)
	}
	return nil
}
