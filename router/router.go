package router

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
)

// Client is anything that can serve a chat completion.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type namedClient struct {
	client Client
	name   string
}

// Router spreads requests round-robin across several provider clients,
// one per configured API key.
type Router struct {
	clients []namedClient
	counter uint64
	logger  *log.Logger
}

func NewRouter(clients []Client, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}

	named := make([]namedClient, len(clients))
	for i, c := range clients {
		name := fmt.Sprintf("key-%d", i+1)
		if n, ok := c.(interface{ Name() string }); ok && n.Name() != "" {
			name = n.Name()
		}
		named[i] = namedClient{client: c, name: name}
	}

	return &Router{
		clients: named,
		logger:  logger,
	}
}

func (r *Router) Len() int { return len(r.clients) }

func (r *Router) CreateChatCompletion(ctx context.Context, req openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	if len(r.clients) == 0 {
		return nil, fmt.Errorf("no clients available")
	}

	index := atomic.AddUint64(&r.counter, 1) - 1
	selected := r.clients[index%uint64(len(r.clients))]

	r.logger.Debug("routing model request", "client", selected.name, "model", string(req.Model))

	return selected.client.CreateChatCompletion(ctx, req)
}
