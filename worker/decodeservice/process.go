package decodeservice

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net"
	"os"
	"os/exec"
	"syscall"

	"github.com/golang/protobuf/proto"
)

// ErrorMsg reports a worker failure to the pool supervisor. Replace
// asks the pool to spawn a substitute process.
type ErrorMsg struct {
	Address string
	Replace bool
	Error   error
}

type Task struct {
	Payload *GeoDecodeGranule
	Resp    chan *Result
	Error   chan error
}

// Process is one codec worker subprocess reached over a unix socket.
// The worker binary links the HEVC decoder libraries so the server
// itself stays cgo free. One decode request is one connection: the
// granule protobuf goes in, the write side closes, and the Result
// protobuf comes back until EOF.
type Process struct {
	TaskQueue chan *Task
	TempFile  string
	Address   string
	Cmd       *exec.Cmd
	Stderr    io.ReadCloser
	ErrorMsg  chan *ErrorMsg
}

func NewProcess(tQueue chan *Task, binary string, errChan chan *ErrorMsg, debug bool) *Process {
	// the temp file keeps the socket path reserved across worker
	// restarts
	tmpFile, err := ioutil.TempFile("", "gimi_codec_")
	if err != nil {
		panic(err)
	}
	tmpFile.Close()

	p := &Process{
		TaskQueue: tQueue,
		TempFile:  tmpFile.Name(),
		Address:   tmpFile.Name() + "_socket",
		ErrorMsg:  errChan,
	}

	args := []string{"-sock", p.Address}
	if debug {
		args = append(args, "-debug")
	}
	p.Cmd = exec.Command(binary, args...)
	p.Cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGKILL}

	stderr, err := p.Cmd.StderrPipe()
	if err != nil {
		log.Printf("Failed to obtain subprocess stderr pipe: %v", err)
	} else {
		p.Cmd.Stdout = p.Cmd.Stderr
		p.Stderr = stderr
	}

	return p
}

func (p *Process) Start() error {
	if err := p.Cmd.Start(); err != nil {
		os.Remove(p.TempFile)
		p.ErrorMsg <- &ErrorMsg{p.Address, false, fmt.Errorf("Failed to start process: %v", err)}
		return err
	}

	log.Println("Codec worker running with PID", p.Cmd.Process.Pid)

	go p.serveTasks()
	go p.reapOutput()

	return nil
}

func (p *Process) cleanup() {
	os.Remove(p.TempFile)
	os.Remove(p.Address)
}

// serveTasks feeds queued granules to the worker, one socket round
// trip per granule. A dial failure means the worker is gone and asks
// the pool for a replacement.
func (p *Process) serveTasks() {
	defer p.cleanup()

	for task := range p.TaskQueue {
		conn, err := net.DialUnix("unix", nil, &net.UnixAddr{Name: p.Address, Net: "unix"})
		if err != nil {
			task.Error <- fmt.Errorf("dial failed: %v", err)
			p.ErrorMsg <- &ErrorMsg{p.Address, true, err}
			return
		}

		res, err := decodeRoundTrip(conn, task.Payload)
		if err != nil {
			task.Error <- err
			continue
		}
		task.Resp <- res
	}
}

func decodeRoundTrip(conn *net.UnixConn, granule *GeoDecodeGranule) (*Result, error) {
	defer conn.Close()

	inb, err := proto.Marshal(granule)
	if err != nil {
		return nil, fmt.Errorf("encode failed: %v", err)
	}
	if n, err := conn.Write(inb); err != nil {
		return nil, fmt.Errorf("error writing %d bytes of data: %v", n, err)
	}
	conn.CloseWrite()

	var buf bytes.Buffer
	if nr, err := io.Copy(&buf, conn); err != nil {
		return nil, fmt.Errorf("error reading %d bytes of data: %v", nr, err)
	}

	res := new(Result)
	if err := proto.Unmarshal(buf.Bytes(), res); err != nil {
		return nil, fmt.Errorf("error decoding data: %v", err)
	}
	return res, nil
}

// reapOutput relays worker stderr lines tagged with the worker pid and
// reports process exit to the pool.
func (p *Process) reapOutput() {
	defer p.cleanup()

	if p.Stderr != nil {
		scanner := bufio.NewScanner(p.Stderr)
		for scanner.Scan() {
			log.Println(p.Cmd.Process.Pid, scanner.Text())
		}
	}

	if err := p.Cmd.Wait(); err != nil {
		p.ErrorMsg <- &ErrorMsg{p.Address, true, fmt.Errorf("Process exited: %v", err)}
	}
}
