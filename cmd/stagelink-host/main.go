package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/stagelinkmusic/stagelink/internal/audio"
	"github.com/stagelinkmusic/stagelink/internal/config"
	"github.com/stagelinkmusic/stagelink/internal/engine"
	"github.com/stagelinkmusic/stagelink/internal/looper"
	"github.com/stagelinkmusic/stagelink/internal/mididev"
	"github.com/stagelinkmusic/stagelink/internal/netsync"
	"github.com/stagelinkmusic/stagelink/internal/session"
	"github.com/stagelinkmusic/stagelink/internal/strip"
)

// portSink forwards a strip's output to the rig's MIDI output port
type portSink struct {
	mgr  *mididev.Manager
	port string
}

func (s *portSink) Send(ev mididev.Event) {
	if err := s.mgr.Send(s.port, ev); err != nil {
		log.Printf("MIDI send failed: %v", err)
	}
}

func main() {
	configPath := flag.String("config", "", "config file path (default: platform config dir)")
	listPorts := flag.Bool("list-ports", false, "list MIDI ports and exit")
	flag.Parse()

	// Load configuration
	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize MIDI manager
	midiManager := mididev.NewManager()
	defer midiManager.Close()

	if *listPorts {
		for _, name := range midiManager.ListInPorts() {
			log.Printf("in:  %s", name)
		}
		for _, name := range midiManager.ListOutPorts() {
			log.Printf("out: %s", name)
		}
		return
	}

	// Open the session store
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir, err = session.DefaultStoreDir()
		if err != nil {
			log.Fatalf("Failed to resolve data dir: %v", err)
		}
	}
	kv, err := session.NewFileKV(dataDir)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	store := session.NewStore(kv)
	defer store.Close()

	// Looper and audio output. A host without an audio device still runs;
	// the looper just has nowhere to play.
	loop := looper.New(cfg.SampleRate, cfg.AudioChannels)
	loop.SetBarLength(cfg.LoopBars)
	output, err := audio.NewOutput(cfg.SampleRate, cfg.AudioChannels, loop)
	if err != nil {
		log.Printf("Audio output unavailable, loop playback disabled: %v", err)
	} else {
		output.Start()
		defer output.Close()
	}

	// Performance engine over the strip rack
	var sinkFor func(session.ChannelConfiguration) strip.Sink
	if cfg.MIDIOutput != "" {
		sink := &portSink{mgr: midiManager, port: cfg.MIDIOutput}
		sinkFor = func(session.ChannelConfiguration) strip.Sink { return sink }
	}
	eng := engine.New(engine.Config{
		Store:          store,
		Rack:           strip.NewRack(),
		Looper:         loop,
		Tap:            looper.NewTapTempo(),
		Sender:         midiManager,
		MIDIOutput:     cfg.MIDIOutput,
		TapTempoCC:     cfg.TapTempoCC,
		LooperToggleCC: cfg.LooperToggleCC,
		SinkFor:        sinkFor,
	})

	// Session sync host for remotes
	host := netsync.NewHost(netsync.HostConfig{
		ServiceName:    cfg.ServiceName,
		Port:           cfg.SyncPort,
		Service:        store,
		OnSelectPreset: eng.SelectPreset,
	})
	ln, err := host.Listen()
	if err != nil {
		log.Fatalf("Failed to open sync listener: %v", err)
	}
	go host.Serve(ln)
	if err := host.Advertise(); err != nil {
		log.Printf("mDNS advertising failed, remotes must connect by address: %v", err)
	}
	defer host.Close()

	// Every session change re-syncs the live path and reaches the remotes.
	store.SetOnChange(func() {
		eng.Reload()
		host.BroadcastState()
	})

	// Attach MIDI inputs
	inputs := cfg.MIDIInputs
	if len(inputs) == 0 {
		inputs = midiManager.ListInPorts()
	}
	attached := 0
	for _, name := range inputs {
		if _, err := midiManager.Listen(name, eng.HandleEvent); err != nil {
			log.Printf("MIDI input %q: %v", name, err)
			continue
		}
		log.Printf("Listening on MIDI input %q", name)
		attached++
	}
	if attached == 0 {
		log.Printf("No MIDI inputs attached; remote control still available")
	}

	log.Printf("Session %q ready on port %d", store.Session().Name, cfg.SyncPort)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Printf("Shutting down")
}
