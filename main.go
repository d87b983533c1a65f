package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/any-index/internal/autoindex"
	"github.com/any-hub/any-index/internal/cache"
	"github.com/any-hub/any-index/internal/config"
	"github.com/any-hub/any-index/internal/logging"
	"github.com/any-hub/any-index/internal/metrics"
	"github.com/any-hub/any-index/internal/server"
	"github.com/any-hub/any-index/internal/server/routes"
	"github.com/any-hub/any-index/internal/version"
)

// cliOptions 汇总 CLI 标志解析后的结果，便于在测试中注入。
type cliOptions struct {
	configPath  string
	checkOnly   bool
	showVersion bool
}

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

func main() {
	opts, err := parseCLIFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(stdErr, err.Error())
		os.Exit(2)
	}
	os.Exit(run(opts))
}

// run 根据解析到的 CLI 选项执行业务流程，并返回退出码，方便测试。
func run(opts cliOptions) int {
	if opts.showVersion {
		printVersion()
		return 0
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stdErr, "加载配置失败: %v\n", err)
		return 1
	}

	logger, err := logging.InitLogger(cfg.Global)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化日志失败: %v\n", err)
		return 1
	}

	registry, err := server.NewMountRegistry(cfg)
	if err != nil {
		fmt.Fprintf(stdErr, "构建挂载点注册表失败: %v\n", err)
		return 1
	}

	// 启动遵循“配置 → MountRegistry → 渲染缓存 → 各挂载点引擎 → Fiber server”顺序，
	// 所有挂载点共享同一份缓存实例。
	store := cache.NewStore()
	engines, err := buildEngines(cfg, store, logger)
	if err != nil {
		fmt.Fprintf(stdErr, "初始化挂载点失败: %v\n", err)
		return 1
	}

	if opts.checkOnly {
		fields := logging.BaseFields("check_config", opts.configPath)
		fields["mounts"] = config.MountSummaries(cfg.Mounts)
		fields["result"] = "ok"
		logger.WithFields(fields).Info("配置校验通过")
		return 0
	}

	fields := logging.BaseFields("startup", opts.configPath)
	fields["mounts"] = config.MountSummaries(cfg.Mounts)
	fields["listen_port"] = cfg.Global.ListenPort
	fields["production"] = cfg.Global.Production
	fields["version"] = version.Full()
	logger.WithFields(fields).Info("配置加载完成")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cache.RunJanitor(ctx, store, cfg.Global.CacheSweepInterval.DurationValue(), func(removed int) {
		metrics.RecordSweep(removed)
		if removed > 0 {
			logger.WithFields(logrus.Fields{
				"action":  "cache_sweep",
				"removed": removed,
			}).Debug("过期渲染缓存已清理")
		}
	})

	handler := autoindex.NewHandler(logger, engines)
	if err := startHTTPServer(cfg, registry, store, handler, logger); err != nil {
		fmt.Fprintf(stdErr, "HTTP 服务启动失败: %v\n", err)
		return 1
	}
	return 0
}

// buildEngines 为每个挂载点构建索引引擎，任一挂载点配置无效都会中止启动。
func buildEngines(cfg *config.Config, store cache.Store, logger *logrus.Logger) (map[string]*autoindex.Engine, error) {
	engines := make(map[string]*autoindex.Engine, len(cfg.Mounts))
	for _, m := range cfg.Mounts {
		engine, err := autoindex.New(autoindex.OptionsFromConfig(m, cfg.Global), store, logger)
		if err != nil {
			logger.WithFields(logging.MountFields(m)).WithError(err).Error("挂载点初始化失败")
			return nil, fmt.Errorf("mount %s: %w", m.Name, err)
		}
		logger.WithFields(logging.MountFields(m)).Debug("挂载点就绪")
		engines[m.Name] = engine
	}
	return engines, nil
}

// parseCLIFlags 解析 CLI 参数，并结合环境变量计算最终的配置路径。
func parseCLIFlags(args []string) (cliOptions, error) {
	fs := flag.NewFlagSet("any-index", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		configFlag string
		checkOnly  bool
		showVer    bool
	)

	fs.StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 ANY_INDEX_CONFIG 覆盖）")
	fs.BoolVar(&checkOnly, "check-config", false, "仅校验配置后退出")
	fs.BoolVar(&showVer, "version", false, "显示版本信息")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, fmt.Errorf("解析参数失败: %w", err)
	}

	path := os.Getenv("ANY_INDEX_CONFIG")
	if configFlag != "" {
		path = configFlag
	}
	if path == "" {
		path = "config.toml"
	}

	return cliOptions{
		configPath:  path,
		checkOnly:   checkOnly,
		showVersion: showVer,
	}, nil
}

func startHTTPServer(
	cfg *config.Config,
	registry *server.MountRegistry,
	store cache.Store,
	handler server.MountHandler,
	logger *logrus.Logger,
) error {
	port := cfg.Global.ListenPort
	app, err := server.NewApp(server.AppOptions{
		Logger:     logger,
		Registry:   registry,
		Handler:    handler,
		ListenPort: port,
	})
	if err != nil {
		return err
	}
	routes.RegisterMountRoutes(app, registry, store)

	logger.WithFields(logrus.Fields{
		"action": "listen",
		"port":   port,
	}).Info("Fiber 服务启动")

	return app.Listen(fmt.Sprintf(":%d", port))
}
