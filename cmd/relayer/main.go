// Copyright 2025 Certen Protocol
//
// cmd/relayer is the process entrypoint: load configuration, open the
// store, and start one Event Watcher, one Transaction Queue drainer, and
// one Bridge Executor per configured chain/contract, all driven off a
// single cancellable context (spec §5).

package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	dbm "github.com/cometbft/cometbft-db"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/webb-tools/relayer/pkg/bridge"
	"github.com/webb-tools/relayer/pkg/chain/evmsource"
	"github.com/webb-tools/relayer/pkg/config"
	"github.com/webb-tools/relayer/pkg/handlers"
	"github.com/webb-tools/relayer/pkg/metrics"
	"github.com/webb-tools/relayer/pkg/queue"
	"github.com/webb-tools/relayer/pkg/resource"
	"github.com/webb-tools/relayer/pkg/signing"
	"github.com/webb-tools/relayer/pkg/store"
	"github.com/webb-tools/relayer/pkg/watcher"
)

const (
	defaultGasLimit  = uint64(500_000)
	defaultMaxRetries = 5
)

func main() {
	chainsDir := flag.String("chains-dir", "./config/chains", "directory of per-chain YAML configs")
	flag.Parse()

	log.Println("starting relayer")

	proc := config.LoadProcessConfig()

	db, err := openStore(proc.StorePath)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	st := store.New(store.NewKV(db))

	reg := prometheus.NewRegistry()
	mtr := metrics.New(reg)

	chainConfigs, err := loadChainConfigs(*chainsDir)
	if err != nil {
		log.Fatalf("load chain configs: %v", err)
	}
	if len(chainConfigs) == 0 {
		log.Printf("no chain configs found under %s; running with metrics/health server only", *chainsDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// universe is shared across every chain: a signed proposal on one chain
	// can target a bridge on another, and SignedProposalHandler fans out to
	// every bridge queue the whole deployment knows about (spec §4.2.3).
	// Building it is a two-pass process: every chain's signing backends and
	// bridge queues must exist before any chain's watcher is started,
	// otherwise a watcher built early would miss bridges a chain configured
	// later in chainConfigs.
	universe := &deploymentUniverse{
		backends:     make(map[resource.ID][]signing.Backend),
		bridgeQueues: make(map[resource.ID]*queue.Queue),
	}

	var chains []*chainState
	for _, cc := range chainConfigs {
		if !cc.Enabled {
			log.Printf("chain %d disabled, skipping", cc.ChainID)
			continue
		}
		cs, err := wireChainBackends(ctx, st, mtr, universe, cc)
		if err != nil {
			log.Fatalf("wire chain %d: %v", cc.ChainID, err)
		}
		chains = append(chains, cs)
	}

	var wg sync.WaitGroup
	for _, cs := range chains {
		startChainServices(ctx, &wg, st, mtr, universe, cs)
	}

	srv := startHTTPServer(proc, reg)

	<-ctx.Done()
	log.Println("shutdown signal received, draining")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	wg.Wait()
	log.Println("relayer stopped cleanly")
}

func openStore(path string) (dbm.DB, error) {
	dir := filepath.Dir(path)
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return dbm.NewGoLevelDB(name, dir)
}

func loadChainConfigs(dir string) ([]*config.ChainConfig, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*config.ChainConfig
	for _, e := range entries {
		if e.IsDir() || (!strings.HasSuffix(e.Name(), ".yaml") && !strings.HasSuffix(e.Name(), ".yml")) {
			continue
		}
		cc, err := config.LoadChainConfig(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		out = append(out, cc)
	}
	return out, nil
}

// deploymentUniverse is the cross-chain state every chain's handlers share:
// the full set of signing backends and signature-bridge queues the relayer
// knows about, since a proposal or a signed-proposal event on one chain can
// target a bridge registered on another.
type deploymentUniverse struct {
	mu           sync.Mutex
	backends     map[resource.ID][]signing.Backend
	bridgeQueues map[resource.ID]*queue.Queue
}

func (u *deploymentUniverse) register(id resource.ID, backend signing.Backend, bridgeQueue *queue.Queue) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.backends[id] = append(u.backends[id], backend)
	if bridgeQueue != nil {
		u.bridgeQueues[id] = bridgeQueue
	}
}

func (u *deploymentUniverse) allBackends() []signing.Backend {
	u.mu.Lock()
	defer u.mu.Unlock()
	var out []signing.Backend
	for _, bs := range u.backends {
		out = append(out, bs...)
	}
	return out
}

func (u *deploymentUniverse) allBridgeQueues() []*queue.Queue {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]*queue.Queue, 0, len(u.bridgeQueues))
	for _, q := range u.bridgeQueues {
		out = append(out, q)
	}
	return out
}

// chainState carries one chain's wiring across the two phases below: its
// client, queues and per-contract bookkeeping built in wireChainBackends,
// consumed by startChainServices once every chain has registered into the
// shared universe.
type chainState struct {
	cc            *config.ChainConfig
	evmClient     *evmsource.Client
	privateKey    *ecdsa.PrivateKey
	addresses     map[resource.ID]common.Address
	linkedAnchors map[resource.ID][]handlers.LinkedAnchor
	localBridges  map[resource.ID]*queue.Queue
	txQueue       *queue.Queue
}

// wireChainBackends dials the chain's client and constructs its signing
// backends and bridge queues, registering them into universe, but does not
// yet start any watcher, drainer, or bridge executor goroutine.
func wireChainBackends(ctx context.Context, st *store.Store, mtr *metrics.Metrics, universe *deploymentUniverse, cc *config.ChainConfig) (*chainState, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cc.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	evmClient, err := evmsource.Dial(ctx, cc.Endpoints.HTTP, maxConfirmations(cc))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cc.Endpoints.HTTP, err)
	}

	cs := &chainState{
		cc:            cc,
		evmClient:     evmClient,
		privateKey:    privateKey,
		addresses:     make(map[resource.ID]common.Address),
		linkedAnchors: make(map[resource.ID][]handlers.LinkedAnchor),
		localBridges:  make(map[resource.ID]*queue.Queue),
		txQueue:       queue.New(st, fmt.Sprintf("evm:%d:tx", cc.ChainID)),
	}

	chainID32 := uint32(cc.ChainID)
	for name, contract := range cc.Contracts {
		addr := common.HexToAddress(contract.Address)
		id := resource.NewEVMResourceID([20]byte(addr), chainID32)
		cs.addresses[id] = addr

		for _, la := range contract.LinkedAnchors {
			targetID, err := parseResourceID(la.ResourceID)
			if err != nil {
				return nil, fmt.Errorf("contract %s: linked anchor %q: %w", name, la.ResourceID, err)
			}
			cs.linkedAnchors[id] = append(cs.linkedAnchors[id], handlers.LinkedAnchor{
				Target:      targetID,
				FunctionSig: handlers.UpdateEdgeFunctionSig,
			})
		}

		backend, bridgeQueue, err := buildSigningBackend(st, mtr, chainID32, id, cs.txQueue, contract.ProposalSigningBackend)
		if err != nil {
			return nil, fmt.Errorf("contract %s: %w", name, err)
		}
		universe.register(id, backend, bridgeQueue)
		if bridgeQueue != nil {
			cs.localBridges[id] = bridgeQueue
		}
	}

	return cs, nil
}

// startChainServices starts one chain's watchers, Transaction Queue drainer,
// and Bridge Executors. Called only after every chain has run
// wireChainBackends, so handlers built here see the full cross-chain
// universe of signing backends and bridge queues.
func startChainServices(ctx context.Context, wg *sync.WaitGroup, st *store.Store, mtr *metrics.Metrics, universe *deploymentUniverse, cs *chainState) {
	cc := cs.cc
	chainID32 := uint32(cc.ChainID)
	anchorSource := evmsource.NewAnchorSource(cs.evmClient, cs.addresses)

	for id := range cs.addresses {
		hs := []watcher.Handler{
			&handlers.LeafCacheHandler{Store: st},
			&handlers.OutputCacheHandler{Store: st},
			&handlers.DepositProposalHandler{
				Roots:         anchorSource,
				LinkedAnchors: cs.linkedAnchors,
				Backends:      universe.allBackends(),
			},
			&handlers.SignedProposalHandler{
				ProposalSignedArgs: evmsource.ProposalSignedDataArgs(),
				Bridges:            universe.allBridgeQueues(),
				TTL:                24 * time.Hour,
			},
		}

		w := watcher.New(id, anchorSource, st, hs, contractPollInterval(cc, id), contractMaxBlocks(cc, id), log.Default())
		w.Metrics = mtr

		wg.Add(1)
		go func(id resource.ID) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				log.Printf("watcher %s stopped: %v", id, err)
			}
		}(id)
	}

	submitter := evmsource.NewSubmitter(cs.evmClient, cs.privateKey, big.NewInt(int64(cc.ChainID)), defaultGasLimit, defaultMaxRetries)
	drainer := queue.NewDrainer(cs.txQueue, submitter, cc.TxQueue.MaxSleepInterval.Duration(), log.Default())
	drainer.ChainID = fmt.Sprintf("%d", cc.ChainID)
	drainer.Metrics = mtr

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := drainer.Run(ctx); err != nil {
			log.Printf("tx queue drainer (chain %d) stopped: %v", cc.ChainID, err)
		}
	}()

	for id, bq := range cs.localBridges {
		exec := bridge.New([20]byte(cs.addresses[id]), chainID32, bq, cs.txQueue, 24*time.Hour, log.Default())
		wg.Add(1)
		go func(id resource.ID) {
			defer wg.Done()
			if err := exec.Run(ctx); err != nil {
				log.Printf("bridge executor %s stopped: %v", id, err)
			}
		}(id)
	}
}

// buildSigningBackend selects and constructs the configured backend variant.
// "mocked" maps to the Local-Signer backend (a relayer-held key signs
// directly); "dkg" maps to On-chain Voting (authority resides in a voting
// contract's quorum, not this process). Spec §6 names these two backend
// type strings without defining their Go-side shape, so the mapping is a
// design decision recorded in DESIGN.md.
func buildSigningBackend(st *store.Store, mtr *metrics.Metrics, chainID uint32, id resource.ID, txQueue *queue.Queue, cfg config.ProposalSigningBackendSettings) (signing.Backend, *queue.Queue, error) {
	switch cfg.Type {
	case "dkg":
		if cfg.VotingContract == "" {
			return nil, nil, fmt.Errorf("dkg backend requires voting_contract")
		}
		votingAddr := common.HexToAddress(cfg.VotingContract)
		var jobID [32]byte
		if cfg.Phase1JobID != "" {
			b, err := hex.DecodeString(strings.TrimPrefix(cfg.Phase1JobID, "0x"))
			if err != nil {
				return nil, nil, fmt.Errorf("parse phase1_job_id: %w", err)
			}
			copy(jobID[:], b)
		}
		var details []byte
		if cfg.Phase1DetailsHex != "" {
			b, err := hex.DecodeString(strings.TrimPrefix(cfg.Phase1DetailsHex, "0x"))
			if err != nil {
				return nil, nil, fmt.Errorf("parse phase1_details: %w", err)
			}
			details = b
		}
		backend := signing.NewOnChainVoting([20]byte(votingAddr), jobID, details, chainID, txQueue, 24*time.Hour)
		backend.Metrics = mtr
		return backend, nil, nil

	case "mocked", "":
		km := signing.NewKeyManager("")
		if err := km.LoadOrGenerateKey(); err != nil {
			return nil, nil, fmt.Errorf("local signer key: %w", err)
		}
		bridgeQueue := queue.New(st, fmt.Sprintf("evm:%d:bridge:%s", chainID, id))
		bridges := map[resource.ID]*queue.Queue{id: bridgeQueue}
		backend := signing.NewLocalSigner(km, bridges, 24*time.Hour)
		backend.Metrics = mtr
		return backend, bridgeQueue, nil

	default:
		return nil, nil, fmt.Errorf("unknown proposal_signing_backend.type %q", cfg.Type)
	}
}

func parseResourceID(hexStr string) (resource.ID, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(hexStr, "0x"))
	if err != nil {
		return resource.ID{}, err
	}
	return resource.FromBytes(b)
}

func maxConfirmations(cc *config.ChainConfig) uint64 {
	var max uint64
	for _, c := range cc.Contracts {
		if c.EventsWatcher.Confirmations > max {
			max = c.EventsWatcher.Confirmations
		}
	}
	return max
}

func findContract(cc *config.ChainConfig, id resource.ID) (config.ContractSettings, bool) {
	for _, c := range cc.Contracts {
		candidate := resource.NewEVMResourceID([20]byte(common.HexToAddress(c.Address)), uint32(cc.ChainID))
		if candidate == id {
			return c, true
		}
	}
	return config.ContractSettings{}, false
}

func contractPollInterval(cc *config.ChainConfig, id resource.ID) time.Duration {
	if c, ok := findContract(cc, id); ok && c.EventsWatcher.PollingInterval.Duration() > 0 {
		return c.EventsWatcher.PollingInterval.Duration()
	}
	return 15 * time.Second
}

func contractMaxBlocks(cc *config.ChainConfig, id resource.ID) uint64 {
	if c, ok := findContract(cc, id); ok && c.EventsWatcher.MaxBlocksPerStep > 0 {
		return c.EventsWatcher.MaxBlocksPerStep
	}
	return 1000
}

func startHTTPServer(proc *config.ProcessConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: proc.MetricsAddr, Handler: mux}
	go func() {
		log.Printf("metrics/health server listening on %s", proc.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	return srv
}
