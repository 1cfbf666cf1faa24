// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"agent-chat-go/internal/config"
	"agent-chat-go/internal/handler"
	"agent-chat-go/internal/middleware"
	"agent-chat-go/internal/pipeline"
	"agent-chat-go/internal/repository"
	"agent-chat-go/internal/service"
	"agent-chat-go/internal/tone"
	"agent-chat-go/internal/ws"
	"agent-chat-go/pkg/database"
	"agent-chat-go/pkg/es"
	"agent-chat-go/pkg/kafka"
	"agent-chat-go/pkg/llm"
	"agent-chat-go/pkg/log"
	"agent-chat-go/pkg/storage"
	"agent-chat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

type repositories struct {
	users         repository.UserRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
}

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	// 3. 初始化存储
	repos := initRepositories(rootCtx, cfg.Database)
	if cfg.Relay.Fanout == "redis" || cfg.Kafka.Enabled {
		database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	}

	// 4. 初始化实时推送
	registry := ws.NewRegistry()
	hub := ws.NewHubNotifier(registry)
	var background sync.WaitGroup
	if cfg.Relay.Fanout == "redis" {
		fanout := ws.NewRedisFanout(database.RDB, cfg.Relay.FanoutChannel)
		hub.UsePublisher(fanout)
		background.Add(1)
		go func() {
			defer background.Done()
			if err := fanout.Run(rootCtx, hub, nil); err != nil {
				log.Error("Redis fanout 退出", err)
			}
		}()
	}

	// 5. 初始化可选的外部服务
	var publisher service.EventPublisher
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka)
		publisher = producer
	}

	var searcher service.MessageSearcher
	if cfg.Elasticsearch.Enabled {
		client, err := es.NewClient(cfg.Elasticsearch)
		if err != nil {
			log.Fatal("es 初始化失败", err)
		}
		index := es.NewMessageIndex(client, cfg.Elasticsearch.IndexName)
		if err := index.EnsureIndex(rootCtx); err != nil {
			log.Fatal("es 索引初始化失败", err)
		}
		searcher = index
		if cfg.Kafka.Enabled {
			// 后台 Kafka 消费者把已发送的消息归档到搜索索引
			background.Add(1)
			go func() {
				defer background.Done()
				kafka.StartConsumer(rootCtx, cfg.Kafka, pipeline.NewProcessor(index), kafka.NewRedisAttempts(database.RDB))
			}()
		} else {
			log.Warnf("elasticsearch 已启用但 kafka 未启用，新消息不会被归档")
		}
	}

	var objects service.ObjectStore
	if cfg.MinIO.Enabled {
		store, err := storage.InitMinIO(rootCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("MinIO 初始化失败", err)
		}
		objects = store
	}

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	transformer := tone.NewTransformer(llm.NewClient(cfg.LLM), cfg.LLM)
	userService := service.NewUserService(repos.users)
	conversationService := service.NewConversationService(repos.conversations, repos.messages, repos.users)
	relayService := service.NewRelayService(repos.conversations, repos.messages, repos.users,
		transformer, hub, publisher, cfg.Relay)
	hub.OnDelivered(func(ctx context.Context, messageID string) {
		if err := relayService.MarkDelivered(ctx, messageID); err != nil {
			log.Warnw("failed to mark message delivered", "messageId", messageID, "error", err)
		}
	})
	searchService := service.NewSearchService(searcher, conversationService)
	transcriptService := service.NewTranscriptService(relayService, objects, cfg.MinIO)
	adminService := service.NewAdminService(hub, registry)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	registerRoutes(r, routeDeps{
		jwt:           jwtManager,
		users:         userService,
		conversations: conversationService,
		relay:         relayService,
		search:        searchService,
		transcripts:   transcriptService,
		admin:         adminService,
		registry:      registry,
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止 fanout 订阅和 Kafka 消费者
	cancelRoot()
	background.Wait()
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}

func initRepositories(ctx context.Context, dbCfg config.DatabaseConfig) repositories {
	if dbCfg.Driver == "memory" {
		log.Warnf("使用内存存储，数据在进程退出后丢失")
		store := repository.NewMemoryStore()
		return repositories{
			users:         store.Users(),
			conversations: store.Conversations(),
			messages:      store.Messages(),
		}
	}

	database.InitMySQL(dbCfg.MySQL.DSN)
	if err := database.AutoMigrate(ctx, database.DB); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	return repositories{
		users:         repository.NewUserRepository(database.DB),
		conversations: repository.NewConversationRepository(database.DB),
		messages:      repository.NewMessageRepository(database.DB),
	}
}

type routeDeps struct {
	jwt           *token.JWTManager
	users         service.UserService
	conversations service.ConversationService
	relay         service.RelayService
	search        service.SearchService
	transcripts   service.TranscriptService
	admin         service.AdminService
	registry      *ws.Registry
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": d.registry.Count()})
	})

	// Chat 路由 (WebSocket)，token 放在路径中
	r.GET("/chat/:token", handler.NewChatHandler(d.registry, d.relay, d.users, d.jwt).Handle)

	userHandler := handler.NewUserHandler(d.users)
	convHandler := handler.NewConversationHandler(d.conversations, d.relay, d.search, d.transcripts)
	adminHandler := handler.NewAdminHandler(d.admin)

	apiV1 := r.Group("/api/v1")
	apiV1.Use(middleware.AuthMiddleware(d.jwt, d.users))
	{
		users := apiV1.Group("/users")
		{
			users.GET("", userHandler.ListUsers)
			users.GET("/me", userHandler.GetProfile)
		}

		conversations := apiV1.Group("/conversations")
		{
			conversations.GET("", convHandler.ListConversations)
			conversations.POST("/with/:userId", convHandler.ResolveConversation)
			conversations.GET("/:id/messages", convHandler.ListMessages)
			conversations.POST("/:id/messages", convHandler.SendMessage)
			conversations.POST("/:id/read", convHandler.MarkRead)
			conversations.PUT("/:id/tone", convHandler.UpdateTone)
			conversations.GET("/:id/search", convHandler.SearchMessages)
			conversations.POST("/:id/export", convHandler.ExportTranscript)
		}

		// 管理员路由组，需要同时通过认证和管理员授权两个中间件
		admin := apiV1.Group("/admin")
		admin.Use(middleware.AdminAuthMiddleware())
		{
			admin.POST("/broadcast", adminHandler.Broadcast)
			admin.GET("/connections", adminHandler.Connections)
		}
	}
}
