package main

import (
	"testing"
	"time"
)

func TestConfigValidate_OK(t *testing.T) {
	c := &appConfig{
		input:                "in.gvar",
		output:               "out.gvar",
		consistencyThreshold: 5,
		frameSize:            32786,
		maxFrames:            1000,
		logFormat:            "text",
		logLevel:             "info",
		backend:              "file",
		serialBaud:           115200,
		serialReadTO:         50 * time.Millisecond,
	}
	if err := c.validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}

func TestConfigValidate_Errors(t *testing.T) {
	base := func() *appConfig {
		return &appConfig{
			input: "in.gvar", output: "out.gvar", consistencyThreshold: 5, frameSize: 32786,
			maxFrames: 1000, logFormat: "text", logLevel: "info", backend: "file",
			serialBaud: 115200, serialReadTO: 50 * time.Millisecond,
		}
	}
	tests := []struct {
		name string
		mod  func(*appConfig)
	}{
		{"missingInput", func(c *appConfig) { c.input = "" }},
		{"badFormat", func(c *appConfig) { c.logFormat = "xx" }},
		{"badLevel", func(c *appConfig) { c.logLevel = "nope" }},
		{"badBackend", func(c *appConfig) { c.backend = "udp" }},
		{"negativeThreshold", func(c *appConfig) { c.consistencyThreshold = -1 }},
		{"zeroFrameSize", func(c *appConfig) { c.frameSize = 0 }},
		{"zeroMaxFrames", func(c *appConfig) { c.maxFrames = 0 }},
		{"zeroBaud", func(c *appConfig) { c.serialBaud = 0 }},
		{"zeroSerialTO", func(c *appConfig) { c.serialReadTO = 0 }},
	}
	for _, tc := range tests {
		c := base()
		tc.mod(c)
		if err := c.validate(); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
