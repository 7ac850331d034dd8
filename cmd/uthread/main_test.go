package main

import (
	"testing"

	"github.com/urfave/cli/v2"
)

func runApp(t *testing.T, args ...string) error {
	t.Helper()
	app := newApp()
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app.Run(append([]string{"uthread"}, args...))
}

func TestApp_Workloads(t *testing.T) {
	cases := [][]string{
		{"roundrobin", "--threads", "3", "--rounds", "2"},
		{"--max-threads", "16", "prodcons", "-p", "2", "-c", "3", "--items", "10", "--capacity", "2"},
		{"--preempt", "1ms", "spin", "-n", "2", "--duration", "20ms"},
	}
	for _, args := range cases {
		if err := runApp(t, args...); err != nil {
			t.Errorf("run %v: %v", args, err)
		}
	}
}

func TestApp_RejectsBadArguments(t *testing.T) {
	cases := [][]string{
		{"roundrobin", "--threads", "0"},
		{"prodcons", "--consumers", "0"},
		{"--max-threads", "2", "roundrobin", "--threads", "3"},
	}
	for _, args := range cases {
		if err := runApp(t, args...); err == nil {
			t.Errorf("run %v: expected error", args)
		}
	}
}
