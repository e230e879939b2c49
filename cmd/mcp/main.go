package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"gopkg.in/yaml.v3"

	socketcomm "github.com/pagestore/pagestore/internal/communication/socket"
	"github.com/pagestore/pagestore/internal/file_client"
	"github.com/pagestore/pagestore/internal/locator"
	"github.com/pagestore/pagestore/internal/log_service"
	locallog "github.com/pagestore/pagestore/internal/log_service/localdisc"
	"github.com/pagestore/pagestore/internal/protocol"
)

type MCPConfig struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`
	LogDir string `yaml:"log_dir"`
}

func LoadConfig(path string) (*MCPConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		defaultConfig := &MCPConfig{LogDir: "./run/mcp/logs"}
		defaultConfig.Server.Address = "localhost:9200"

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %v", err)
		}

		data, err := yaml.Marshal(defaultConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal default config: %v", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("failed to write default config: %v", err)
		}

		return defaultConfig, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	config := &MCPConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	return config, nil
}

func readWholeFile(ctx context.Context, fc *file_client.Client, path string) ([]byte, error) {
	fd, err := fc.Open(ctx, path, protocol.ReadOnly)
	if err != nil {
		return nil, err
	}
	defer fc.Close(ctx, fd)

	var out []byte
	buf := make([]byte, protocol.PageSize)
	for {
		n, err := fc.ReadFd(ctx, fd, buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n]...)
	}
}

func writeWholeFile(ctx context.Context, fc *file_client.Client, path string, data []byte) error {
	fd, err := fc.Open(ctx, path, protocol.ReadWrite|protocol.Create|protocol.Trunc)
	if err != nil {
		return err
	}
	defer fc.Close(ctx, fd)

	for written := 0; written < len(data); {
		n, err := fc.WriteFd(ctx, fd, data[written:])
		if err != nil {
			return err
		}
		written += n
	}
	return nil
}

func addTools(s *server.MCPServer, fc *file_client.Client) {
	readTool := mcp.NewTool("read_file",
		mcp.WithDescription("Read a file from the pagestore file server"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute file path"),
		),
	)
	s.AddTool(readTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		data, err := readWholeFile(ctx, fc, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to read file: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	})

	writeTool := mcp.NewTool("write_file",
		mcp.WithDescription("Write a file on the pagestore file server"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute file path"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("File content"),
		),
	)
	s.AddTool(writeTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		content, err := request.RequireString("content")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := writeWholeFile(ctx, fc, path, []byte(content)); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to write file: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Wrote %d bytes to %s", len(content), path)), nil
	})

	statTool := mcp.NewTool("stat_file",
		mcp.WithDescription("Report name, size and directory flag of a file"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute file path"),
		),
	)
	s.AddTool(statTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fd, err := fc.Open(ctx, path, protocol.ReadOnly)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to open file: %v", err)), nil
		}
		defer fc.Close(ctx, fd)
		info, err := fc.StatFd(ctx, fd)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to stat file: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("name=%s size=%d dir=%v", info.Name, info.Size, info.IsDir)), nil
	})

	truncateTool := mcp.NewTool("truncate_file",
		mcp.WithDescription("Truncate or extend a file to the given size"),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute file path"),
		),
		mcp.WithString("size",
			mcp.Required(),
			mcp.Description("Target size in bytes"),
		),
	)
	s.AddTool(truncateTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path, err := request.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		sizeStr, err := request.RequireString("size")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		size, err := strconv.ParseInt(sizeStr, 10, 64)
		if err != nil || size < 0 {
			return mcp.NewToolResultError("size must be a non-negative integer"), nil
		}
		fd, err := fc.Open(ctx, path, protocol.ReadWrite)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to open file: %v", err)), nil
		}
		defer fc.Close(ctx, fd)
		if err := fc.TruncateFd(ctx, fd, size); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to truncate file: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Truncated %s to %d bytes", path, size)), nil
	})

	syncTool := mcp.NewTool("sync",
		mcp.WithDescription("Flush all dirty server-side state to durable storage"),
	)
	s.AddTool(syncTool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := fc.Sync(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Sync failed: %v", err)), nil
		}
		return mcp.NewToolResultText("Sync complete"), nil
	})
}

func main() {
	configPath := flag.String("config", "./run/mcp/config.yaml", "Config file path")
	flag.Parse()

	config, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}

	ls := locallog.NewLocalDiscLogService(config.LogDir, "pagestore-mcp", log_service.InfoLevel)
	loc := locator.NewStaticLocator(config.Server.Address)
	ex := socketcomm.NewSocketExchanger(loc, ls)
	defer ex.Close()
	fc := file_client.NewClient(ex)

	s := server.NewMCPServer(
		"pagestore",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	addTools(s, fc)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("Server error: %v\n", err)
	}
}
