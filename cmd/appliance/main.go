// Command appliance is the bare-metal MIDI synthesis appliance's
// entry point: it loads configuration, wires every component named in
// the package map, and runs the Main task loop until signalled to
// stop. Flag handling mirrors the teacher's cmd/direwolf/main.go
// (github.com/spf13/pflag, flags overriding config file values).
package main

import (
	"context"
	"fmt"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/sbcsynth/core/internal/applemidi"
	"github.com/sbcsynth/core/internal/audiosink"
	"github.com/sbcsynth/core/internal/config"
	"github.com/sbcsynth/core/internal/control"
	"github.com/sbcsynth/core/internal/engine"
	"github.com/sbcsynth/core/internal/events"
	"github.com/sbcsynth/core/internal/logging"
	"github.com/sbcsynth/core/internal/mdns"
	"github.com/sbcsynth/core/internal/midiserial"
	"github.com/sbcsynth/core/internal/orchestrator"
	"github.com/sbcsynth/core/internal/rom"
	"github.com/sbcsynth/core/internal/soundfont"
	"github.com/sbcsynth/core/internal/synth"
	"github.com/sbcsynth/core/internal/synth/mt32"
	"github.com/sbcsynth/core/internal/synth/sc55"
	sfadapter "github.com/sbcsynth/core/internal/synth/soundfont"
	"github.com/sbcsynth/core/internal/usbwatch"
)

func main() {
	configFile := pflag.StringP("config-file", "c", "appliance.yaml", "Configuration file name.")
	verbose := pflag.BoolP("verbose", "v", false, "Enable debug-level logging.")
	audioDevice := pflag.String("audio-device", "", "Override the configured audio output device.")
	sampleRate := pflag.Int("sample-rate", 0, "Override the configured sample rate. 0 uses the config value.")
	pflag.Parse()

	level := charmlog.InfoLevel
	if *verbose {
		level = charmlog.DebugLevel
	}

	log := logging.New(os.Stderr, level)

	cfg, err := config.YAMLLoader{Path: *configFile}.Load()
	if err != nil {
		log.Fatal("load config", "err", err)
	}

	if *audioDevice != "" {
		cfg.Audio.Device = *audioDevice
	}

	if *sampleRate != 0 {
		cfg.Audio.SampleRate = *sampleRate
	}

	core := buildCore(cfg, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	runMain(ctx, core, cfg, log)
}

// buildCore wires every internal package into one orchestrator.Core,
// defensive rather than fatal on missing optional hardware (a GPIO
// chip, a real UART) so the appliance still runs with reduced ingest.
func buildCore(cfg config.Config, log *charmlog.Logger) *orchestrator.Core {
	core := orchestrator.NewCore()
	core.Queue = events.NewQueue()
	core.Roms = rom.New()
	core.SFManager = soundfont.New()
	core.ReversedStereo = cfg.System.ReversedStereo

	core.Warn = func(msg string) { core.UI.ShowMessage(msg, core.Clock()) }
	core.Reboot = func() {
		log.Warn("reboot requested, exiting")
		os.Exit(0)
	}
	core.Clock = wallClockMs

	core.LA = mt32.New(core.Roms, engine.Silent{}, 1.0)
	core.SF = sfadapter.New(core.SFManager, soundFontLoader{}, engine.SilentSoundFont{}, 1.0)

	sc55Port := sc55.New(engine.Silent{}, 1.0)
	sc55Port.OnDisplay = func(kind sc55.DisplayKind, data []byte) {
		switch kind {
		case sc55.DisplayText:
			core.UI.ShowSysExText(string(data), core.Clock())
		case sc55.DisplayDots:
			core.UI.ShowSysExBitmap(data, core.Clock())
		}
	}

	core.Ports = []synth.Port{core.LA, core.SF, sc55Port}
	core.ActiveIndex = 0

	if cfg.MIDI.UARTDevice != "" {
		if uart, err := midiserial.OpenUART(cfg.MIDI.UARTDevice, cfg.MIDI.UARTBaud); err != nil {
			log.Warn("uart unavailable", "err", err)
		} else {
			core.AddSource("uart", uart.Read)
		}
	}

	if cfg.Control.Enabled {
		w := control.New("gpiochip0", core.Queue)

		for i, line := range cfg.Control.ButtonLines {
			if err := w.WatchButton(i, line); err != nil {
				log.Warn("button line unavailable", "line", line, "err", err)
			}
		}

		if cfg.Control.EncoderA >= 0 && cfg.Control.EncoderB >= 0 {
			if err := w.WatchEncoder(cfg.Control.EncoderA, cfg.Control.EncoderB); err != nil {
				log.Warn("encoder lines unavailable", "err", err)
			}
		}
	}

	return core
}

func runMain(ctx context.Context, core *orchestrator.Core, cfg config.Config, log *charmlog.Logger) {
	if cfg.Network.AppleMidiEnable {
		announcer, err := mdns.Announce(ctx, cfg.Network.SessionName, cfg.Network.ControlPort)
		if err != nil {
			log.Warn("mdns announce failed", "err", err)
		} else {
			defer announcer.Shutdown()
		}

		go runAppleMidi(ctx, core, cfg, log)
	}

	sink, err := audiosink.Open(cfg.Audio.Device, float64(cfg.Audio.SampleRate), cfg.Audio.ChunkFrames)
	if err != nil {
		log.Warn("audio sink unavailable, running headless", "err", err)
		sink = nil
	} else {
		defer sink.Close()
	}

	watcher := usbwatch.New(core, func() []fs.FS { return nil }, engine.SizeHeuristicRomValidator{})

	go func() {
		if err := watcher.Run(ctx); err != nil {
			log.Warn("usb watcher stopped", "err", err)
		}
	}()
	defer watcher.Close()

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			ticksMs := float64(now.UnixMilli())
			core.Ingest(ticksMs)
			core.Tick(ticksMs, cfg.LCD.Width)
			core.Queue.Dispatch(func(ev events.Event) { dispatchControlEvent(core, ev) })

			if sink != nil {
				core.RenderAudio(sink, func(msg string) { log.Warn(msg) })
			}
		}
	}
}

func dispatchControlEvent(core *orchestrator.Core, ev events.Event) {
	switch ev.Kind {
	case events.SwitchSynth:
		core.SwitchSynth(ev.Index)
	case events.SwitchMt32RomSet:
		core.SwitchRomSet(rom.Set(ev.Index))
	case events.SwitchSoundFont:
		core.RequestSoundFontSwitch(ev.Index)
	}
}

func wallClockMs() float64 {
	return float64(time.Now().UnixMilli())
}

// soundFontLoader implements sfadapter.Loader by reading the entry's
// bytes and adjoining .cfg profile straight off the OS filesystem; a
// full deployment would instead bind this to the same mount set
// internal/usbwatch last handed to core.SFManager.Scan.
type soundFontLoader struct{}

func (soundFontLoader) Load(entry soundfont.Entry) ([]byte, soundfont.FxProfile, error) {
	data, err := os.ReadFile(entry.Path)
	if err != nil {
		return nil, soundfont.FxProfile{}, fmt.Errorf("soundfont loader: read %s: %w", entry.Path, err)
	}

	return data, soundfont.FxProfile{}, nil
}

func runAppleMidi(ctx context.Context, core *orchestrator.Core, cfg config.Config, log *charmlog.Logger) {
	ctrlConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Network.ControlPort})
	if err != nil {
		log.Warn("applemidi control socket unavailable", "err", err)
		return
	}
	defer ctrlConn.Close()

	dataConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: cfg.Network.ControlPort + 1})
	if err != nil {
		log.Warn("applemidi data socket unavailable", "err", err)
		return
	}
	defer dataConn.Close()

	var lastCtrlAddr, lastDataAddr *net.UDPAddr

	p := applemidi.NewParticipant(randomSSRC(), cfg.Network.SessionName)
	p.SendControl = func(pkt []byte) {
		if lastCtrlAddr != nil {
			_, _ = ctrlConn.WriteToUDP(pkt, lastCtrlAddr)
		}
	}
	p.SendData = func(pkt []byte) {
		if lastDataAddr != nil {
			_, _ = dataConn.WriteToUDP(pkt, lastDataAddr)
		}
	}
	p.OnData = func(c applemidi.Command) {
		if c.IsSysEx {
			core.DispatchRemoteSysEx(c.SysEx)
		} else {
			core.DispatchRemoteShort(c.Short)
		}
	}

	go udpReadLoop(ctx, ctrlConn, func(buf []byte, addr *net.UDPAddr) {
		lastCtrlAddr = addr
		p.HandleControlPacket(buf, addr.IP.String(), addr.Port, wallClockMs())
	})

	go udpReadLoop(ctx, dataConn, func(buf []byte, addr *net.UDPAddr) {
		lastDataAddr = addr
		p.HandleDataPacket(buf, addr.IP.String(), addr.Port, wallClockMs())
	})

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Update(wallClockMs())
		}
	}
}

func udpReadLoop(ctx context.Context, conn *net.UDPConn, handle func([]byte, *net.UDPAddr)) {
	buf := make([]byte, 2048)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}

		handle(buf[:n], addr)
	}
}

func randomSSRC() uint32 {
	return uint32(time.Now().UnixNano())
}
