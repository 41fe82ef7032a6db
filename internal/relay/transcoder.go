package relay

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Transcoder owns one external audio-transcoding subprocess per session.
// Raw PCM goes in through Write, encoded output comes back through Output,
// the diagnostic stream is surfaced as log lines, and process exit is
// observable through Done. Modeling the process as an owned object (rather
// than a bare spawned handle) is what makes idempotent teardown and the
// bounded-grace kill tractable.
type Transcoder struct {
	Path string
	Args []string
	Tag  string // log prefix, normally the camera ID

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	exit     chan struct{}
	exitErr  error
	stopOnce sync.Once
}

// TranscoderArgs builds the argument list for the browser→camera audio
// leg: headerless s16le mono 48 kHz on stdin, AAC wrapped in ADTS framing,
// mono 22.05 kHz at ~32 kbps on stdout. The buffering flags trade
// compression efficiency for latency; live speech staleness is worse
// than a few extra kilobits.
func TranscoderArgs() []string {
	return []string{
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", InputSampleRate),
		"-ac", "1",
		"-i", "pipe:0",
		"-c:a", "aac",
		"-ar", fmt.Sprintf("%d", OutputSampleRate),
		"-ac", "1",
		"-b:a", OutputBitrate,
		"-flush_packets", "1",
		"-f", "adts",
		"pipe:1",
	}
}

// Start spawns the subprocess and begins draining its diagnostic stream.
func (t *Transcoder) Start() error {
	cmd := exec.Command(t.Path, t.Args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start transcoder: %w", err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.stdout = stdout
	t.exit = make(chan struct{})

	go t.scanStderr(stderr)
	go func() {
		t.exitErr = cmd.Wait()
		close(t.exit)
	}()

	return nil
}

// Write forwards one raw PCM chunk to the subprocess input. It may block
// briefly under backpressure, which simply delays the next frame; there is
// deliberately no frame queue in front of it (drop beats buffering for
// live speech).
func (t *Transcoder) Write(p []byte) (int, error) {
	return t.stdin.Write(p)
}

// Output is the encoded-output stream. Exactly one reader drains it.
func (t *Transcoder) Output() io.Reader {
	return t.stdout
}

// Done is closed once the subprocess has exited.
func (t *Transcoder) Done() <-chan struct{} {
	return t.exit
}

// ExitErr reports the subprocess exit error. Only valid after Done is closed.
func (t *Transcoder) ExitErr() error {
	return t.exitErr
}

// Stop closes the subprocess input so any in-flight encode can flush,
// waits up to grace for a clean exit, then kills the process. Safe to
// call more than once and safe to call concurrently with process exit.
func (t *Transcoder) Stop(grace time.Duration) {
	if t.cmd == nil {
		return
	}
	t.stopOnce.Do(func() {
		t.stdin.Close()
		select {
		case <-t.exit:
		case <-time.After(grace):
			log.Printf("[transcoder:%s] no exit after %s, killing", t.Tag, grace)
			t.cmd.Process.Kill()
			<-t.exit
		}
	})
}

// scanStderr surfaces the subprocess diagnostic stream as log lines,
// dropping the startup banner so operational logs stay signal-dense.
func (t *Transcoder) scanStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if isBannerNoise(line) {
			continue
		}
		log.Printf("[transcoder:%s] %s", t.Tag, line)
	}
}

// bannerPrefixes matches the version/build/stream-description preamble the
// transcoder prints before any real diagnostics.
var bannerPrefixes = []string{
	"ffmpeg version",
	"built with",
	"configuration:",
	"lib",
	"Input #",
	"Output #",
	"Stream mapping",
	"Stream #",
	"Metadata:",
	"Duration:",
	"encoder ",
	"Press [q]",
	"size=",
}

func isBannerNoise(line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true
	}
	for _, p := range bannerPrefixes {
		if strings.HasPrefix(trimmed, p) {
			return true
		}
	}
	return false
}
