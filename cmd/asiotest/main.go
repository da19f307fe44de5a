/*
 * This file is part of ASIO Bridge (https://github.com/openasio/asio-bridge-go).
 * Copyright (C) 2025 OpenASIO Authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

// asiotest exercises the driver the way an ASIO host would: it walks the
// full control surface in order, prints the outcome of every step, and
// optionally streams audio for a while. It exits non-zero as soon as any
// step fails, which makes it usable as a smoke test against real hardware
// or, with --mock, in CI.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/openasio/asio-bridge-go/internal/asio"
	"github.com/openasio/asio-bridge-go/internal/backend"
	"github.com/openasio/asio-bridge-go/internal/config"
	"github.com/openasio/asio-bridge-go/internal/driver"
	"github.com/openasio/asio-bridge-go/internal/events"
	"github.com/openasio/asio-bridge-go/internal/logging"
	"github.com/openasio/asio-bridge-go/internal/metrics"
	"github.com/openasio/asio-bridge-go/internal/translate"
)

var (
	configPath  string
	useMock     bool
	runFor      time.Duration
	mockPeriods int
	bufferSize  int
	capturePath string
)

var rootCmd = &cobra.Command{
	Use:   "asiotest",
	Short: "Exercise the ASIO bridge driver end to end",
	Long: `asiotest walks the driver control surface in the order an ASIO host
would: initialization, channel and buffer queries, sample rate negotiation,
buffer creation, streaming and teardown. Each step prints its result.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to the driver configuration file")
	rootCmd.Flags().BoolVar(&useMock, "mock", false, "run against the mock backend instead of PortAudio")
	rootCmd.Flags().DurationVar(&runFor, "run", 2*time.Second, "how long to stream audio (real backend)")
	rootCmd.Flags().IntVar(&mockPeriods, "periods", 100, "how many periods to simulate (mock backend)")
	rootCmd.Flags().IntVar(&bufferSize, "buffer-size", 0, "buffer size in frames (0 means the preferred size)")
	rootCmd.Flags().StringVar(&capturePath, "capture", "", "write captured input to this WAV file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// step runs one driver operation and prints its outcome the way an ASIO
// host's trace would, with the symbolic error name on failure.
func step(name string, op func() error) error {
	fmt.Printf("%s... ", name)
	if err := op(); err != nil {
		fmt.Printf("-> %s\n", translate.ToASIO(err))
		return fmt.Errorf("%s failed: %w", name, err)
	}
	fmt.Println("-> OK")
	return nil
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logging.Setup(cfg.Logging)

	var b backend.Backend
	if useMock {
		b = backend.NewMockBackend()
	} else {
		b = backend.NewPortAudioBackend()
	}

	opts := driver.Options{Logger: log}
	if cfg.Metrics.Enabled {
		opts.Metrics = metrics.New(prometheus.DefaultRegisterer)
		go serveMetrics(cfg.Metrics.Address)
		log.Info("metrics enabled", "address", cfg.Metrics.Address)
	}
	if cfg.Events.Enabled {
		pub, err := events.Connect(cfg.Events.URL, cfg.Events.SubjectPrefix, log)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts.Events = pub
	}

	d, err := driver.Open(cfg, b, opts)
	if err != nil {
		return fmt.Errorf("opening driver: %w", err)
	}
	fmt.Printf("driver: %s (version %d)\n", d.Name(), d.Version())

	if err := step("init", d.Init); err != nil {
		return err
	}

	var inputs, outputs int
	if err := step("getChannels", func() error {
		var err error
		inputs, outputs, err = d.ChannelCounts()
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("  %d input channels, %d output channels\n", inputs, outputs)

	var rng asio.BufferSizeRange
	if err := step("getBufferSize", func() error {
		var err error
		rng, err = d.BufferSizeRange()
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("  min %d, max %d, preferred %d, granularity %d\n",
		rng.Min, rng.Max, rng.Preferred, rng.Granularity)

	// Probe the common rates the way hosts do on startup. Refusals are
	// expected and reported, not fatal.
	for _, rate := range []float64{44100, 48000, 96000, 192000} {
		ok, err := d.CanSampleRate(rate)
		if err != nil {
			return fmt.Errorf("canSampleRate(%g): %w", rate, err)
		}
		fmt.Printf("canSampleRate(%g) -> %t\n", rate, ok)
		if ok {
			if err := step(fmt.Sprintf("setSampleRate(%g)", rate), func() error {
				return d.SetSampleRate(rate)
			}); err != nil {
				return err
			}
		}
	}

	rate, err := d.SampleRate()
	if err != nil {
		return err
	}
	fmt.Printf("sample rate: %g Hz\n", rate)

	for i := 0; i < inputs; i++ {
		info, err := d.ChannelInfo(i, true)
		if err != nil {
			return err
		}
		fmt.Printf("  input %d: %q (%s)\n", i, info.Name, info.SampleType)
	}
	for i := 0; i < outputs; i++ {
		info, err := d.ChannelInfo(i, false)
		if err != nil {
			return err
		}
		fmt.Printf("  output %d: %q (%s)\n", i, info.Name, info.SampleType)
	}

	frames := bufferSize
	if frames == 0 {
		frames = rng.Preferred
	}

	session := newSession(inputs, outputs, rate, frames)
	var views []driver.BufferView
	if err := step(fmt.Sprintf("createBuffers(%d frames)", frames), func() error {
		var err error
		views, err = d.CreateBuffers(session.requests(), frames, session.callbacks())
		return err
	}); err != nil {
		return err
	}
	session.bind(views)

	// Advisory hint; a refusal is informational, not a session failure.
	if err := d.OutputReady(); err != nil {
		fmt.Printf("outputReady... -> %s (ignored)\n", translate.ToASIO(err))
	} else {
		fmt.Println("outputReady... -> OK")
	}

	lat, err := d.Latencies()
	if err != nil {
		return err
	}
	fmt.Printf("latencies: input %d frames, output %d frames\n", lat.Input, lat.Output)

	if err := step("start", d.Start); err != nil {
		return err
	}

	if useMock {
		driveMockPeriods(b.(*backend.MockBackend), frames)
	} else {
		time.Sleep(runFor)
	}

	pos, clock, err := d.SamplePosition()
	if err != nil {
		return err
	}
	fmt.Printf("streamed %d samples (%d periods, clock %v)\n", pos, session.periods(), clock)

	if err := step("stop", d.Stop); err != nil {
		return err
	}
	if err := step("disposeBuffers", d.DisposeBuffers); err != nil {
		return err
	}
	if err := step("release", d.Release); err != nil {
		return err
	}

	if capturePath != "" {
		if err := session.writeCapture(capturePath); err != nil {
			return fmt.Errorf("writing capture: %w", err)
		}
		fmt.Printf("captured input written to %s\n", capturePath)
	}
	return nil
}

func driveMockPeriods(mock *backend.MockBackend, frames int) {
	streams := mock.Streams()
	if len(streams) == 0 {
		return
	}
	stream := streams[len(streams)-1]
	stream.SetInputGenerator(func(n int, in [][]float32) {
		for ch := range in {
			for i := range in[ch] {
				in[ch][i] = float32(ch+1) * 0.25
			}
		}
	})
	for i := 0; i < mockPeriods; i++ {
		stream.TriggerPeriod(frames)
	}
}

func serveMetrics(address string) {
	server := &http.Server{
		Addr:              address,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		fmt.Fprintf(os.Stderr, "metrics server: %v\n", err)
	}
}
