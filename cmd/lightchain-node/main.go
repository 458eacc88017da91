// Command lightchain-node starts a LightChain ingest node: it opens its
// persistent stores, restores validator state from genesis, joins the
// P2P conduit, and serves the JSON-RPC query surface until signalled to
// stop.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightchain-sdp/node/config"
	"github.com/lightchain-sdp/node/conduit"
	appcrypto "github.com/lightchain-sdp/node/crypto"
	"github.com/lightchain-sdp/node/crypto/certgen"
	"github.com/lightchain-sdp/node/ingest"
	"github.com/lightchain-sdp/node/keystore"
	"github.com/lightchain-sdp/node/merkle"
	"github.com/lightchain-sdp/node/model"
	"github.com/lightchain-sdp/node/orchestrator"
	"github.com/lightchain-sdp/node/rpc"
	"github.com/lightchain-sdp/node/state"
	"github.com/lightchain-sdp/node/store"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment, not CLI flags — flags leak
	// via ps.
	password := os.Getenv("LIGHTCHAIN_PASSWORD")
	if password == "" {
		log.Println("WARNING: LIGHTCHAIN_PASSWORD not set, keystore will use an empty password")
	}

	if *genKey {
		priv, pub, err := newKeyPair()
		if err != nil {
			log.Fatal(err)
		}
		if err := keystore.Save(*keyPath, password, priv); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Public key (validator identity): %s\n", pub.Hex())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	if *genCerts != "" {
		cfgForCerts, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	privKey, err := keystore.Load(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := store.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	blocks := store.NewBlocks(db)
	seen := store.NewIdentifiers(db, "seen/")
	txIDs := store.NewIdentifiers(db, "txids/")
	pending := store.NewPendingTransactions(db)
	tree := merkle.New()

	genesis, err := config.GenesisSnapshot(cfg)
	if err != nil {
		log.Fatalf("genesis: %v", err)
	}
	states := state.New(genesis)
	log.Printf("Genesis snapshot: %d accounts, chain %q", len(genesis.Accounts), cfg.Genesis.ChainID)

	params := ingest.Params{
		ValidatorThreshold: config.ValidatorThreshold,
		SignatureThreshold: config.SignatureThreshold,
		MinStake:           config.MinStake,
	}
	engine := ingest.New(params, seen, blocks, txIDs, pending, states, tree)
	engine.SubscribeNewValidatedBlock(func(blockID model.Identifier) {
		log.Printf("committed block %s", blockID)
	})

	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for P2P")
	}

	p2pAddr := fmt.Sprintf(":%d", cfg.P2PPort)
	network := conduit.NewTCPNetwork(cfg.NodeID, p2pAddr, tlsCfg)
	if _, err := network.Register(engine, conduit.ChannelValidatedBlocks); err != nil {
		log.Fatalf("register validated-blocks channel: %v", err)
	}
	if _, err := network.Register(engine, conduit.ChannelValidatedTxs); err != nil {
		log.Fatalf("register validated-transactions channel: %v", err)
	}

	rpcAddr := fmt.Sprintf(":%d", cfg.RPCPort)
	rpcHandler := rpc.NewHandler(blocks, pending, states, tree, engine)
	rpcServer := rpc.NewServer(rpcAddr, rpcHandler, cfg.RPCAuthToken)

	components := []orchestrator.Component{
		tcpNetworkComponent{network},
		rpcServerComponent{rpcServer},
	}
	orch := orchestrator.New(components...)

	// A store failure mid-commit must terminate the node, not just get
	// logged by whatever conduit handler happened to be processing the
	// entity.
	engine.OnFatal(func(err error) {
		log.Printf("FATAL: %v", err)
		go func() {
			if stopErr := orch.Stop(); stopErr != nil {
				log.Printf("shutdown after fatal error: %v", stopErr)
			}
			os.Exit(1)
		}()
	})

	if err := orch.Start(10 * time.Second); err != nil {
		log.Fatalf("start: %v", err)
	}
	log.Printf("P2P listening on %s", p2pAddr)
	log.Printf("RPC listening on %s", rpcAddr)
	if cfg.RPCAuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}

	for _, sp := range cfg.SeedPeers {
		if err := network.AddPeer(sp.ID, sp.Addr); err != nil {
			log.Printf("seed peer %s (%s): %v", sp.ID, sp.Addr, err)
			continue
		}
		log.Printf("Connected to seed peer %s (%s)", sp.ID, sp.Addr)
	}

	log.Printf("Node running (validator: %s)", privKey.Public().Hex())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	if err := orch.Stop(); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("Shutdown complete.")
}

func newKeyPair() (appcrypto.PrivateKey, appcrypto.PublicKey, error) {
	return appcrypto.GenerateKeyPair()
}

// tcpNetworkComponent adapts conduit.TCPNetwork to orchestrator.Component.
// Binding a listening socket is fast enough that Start ignores ctx's
// deadline; a future version could thread it through net.ListenConfig.
type tcpNetworkComponent struct {
	net *conduit.TCPNetwork
}

func (c tcpNetworkComponent) Name() string                    { return "conduit" }
func (c tcpNetworkComponent) Start(ctx context.Context) error { return c.net.Start() }
func (c tcpNetworkComponent) Stop() error                     { return c.net.Stop() }

// rpcServerComponent adapts rpc.Server to orchestrator.Component.
type rpcServerComponent struct {
	srv *rpc.Server
}

func (c rpcServerComponent) Name() string                    { return "rpc" }
func (c rpcServerComponent) Start(ctx context.Context) error { return c.srv.Start() }
func (c rpcServerComponent) Stop() error                     { return c.srv.Stop() }
