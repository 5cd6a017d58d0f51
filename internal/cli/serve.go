package cli

import (
	"fmt"
	"net/netip"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	epidemic "github.com/epidemic-mesh/epidemic"
	"github.com/epidemic-mesh/epidemic/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringSlice("seed", nil, "seed peer address (host:port), repeatable")
	serveCmd.Flags().String("seeds-file", "", "YAML file listing seed peer addresses")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the membership reactor and status server",
	RunE:  runServe,
}

// seedsFile is the YAML shape accepted by --seeds-file: a flat list of
// host:port strings, bulk-loaded the way a static seed list is supplied
// to most gossip daemons at startup.
type seedsFile struct {
	Seeds []string `yaml:"seeds"`
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := daemon.Load(configPath(cmd))
	if err != nil {
		return err
	}
	gossipCfg, err := cfg.ToGossipConfig()
	if err != nil {
		return err
	}

	hostKey := uuid.New()
	registry := newPrometheusRegistry()
	cluster, err := epidemic.New(hostKey, gossipCfg, registry)
	if err != nil {
		return fmt.Errorf("start cluster: %w", err)
	}
	defer cluster.Close()

	seeds, err := collectSeeds(cmd)
	if err != nil {
		return err
	}
	for _, s := range seeds {
		cluster.AddSeedNode(s)
	}

	statusServer := newStatusServer(cfg.Status.Addr, cluster, registry)
	go func() {
		if err := statusServer.ListenAndServe(); err != nil {
			fmt.Fprintln(os.Stderr, "status server:", err)
		}
	}()
	defer statusServer.Close()

	fmt.Fprintf(os.Stdout, "epidemicd listening on %s (host key %s), status on %s\n",
		gossipCfg.ListenAddr, hostKey, cfg.Status.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	cluster.LeaveCluster()
	return nil
}

func collectSeeds(cmd *cobra.Command) ([]netip.AddrPort, error) {
	var raw []string

	flagSeeds, _ := cmd.Flags().GetStringSlice("seed")
	raw = append(raw, flagSeeds...)

	if path, _ := cmd.Flags().GetString("seeds-file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seeds file: %w", err)
		}
		var sf seedsFile
		if err := yaml.Unmarshal(data, &sf); err != nil {
			return nil, fmt.Errorf("parse seeds file: %w", err)
		}
		raw = append(raw, sf.Seeds...)
	}

	addrs := make([]netip.AddrPort, 0, len(raw))
	for _, s := range raw {
		addr, err := netip.ParseAddrPort(s)
		if err != nil {
			return nil, fmt.Errorf("parse seed %q: %w", s, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func configPath(cmd *cobra.Command) string {
	if p := configPathFlag(cmd); p != "" {
		return p
	}
	return daemon.DefaultConfigPath()
}
