// Package ai wraps a text generation model for catalog copy, the shopping
// chat and medication interaction checks. Model failures never surface as
// errors: callers get a canned answer flagged as a fallback.
package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"pharmastore/m/domain"
	"pharmastore/m/internal/logger"
	"pharmastore/m/internal/metrics"
	"pharmastore/m/internal/store"
)

const (
	fallbackDescription  = "Producto de calidad disponible en nuestra farmacia. Consulte a su farmaceutico para mas informacion."
	fallbackSocial       = "Visitanos y descubre nuestras ofertas en salud y bienestar."
	fallbackChat         = "Lo siento, en este momento no puedo responder. Por favor intenta de nuevo o escribenos por WhatsApp."
	fallbackInteractions = "No fue posible verificar las interacciones. Consulte a su medico o farmaceutico antes de combinar medicamentos."

	maxChatProducts = 50
	maxHistory      = 10
)

// Answer is a generated text. Fallback is set when the canned text was used.
type Answer struct {
	Text     string `json:"text"`
	Fallback bool   `json:"fallback"`
}

// ChatMessage is one turn of a conversation.
type ChatMessage struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Catalog supplies product names for grounding chat answers.
type Catalog interface {
	ListProducts(ctx context.Context, f store.ProductFilter) ([]domain.Product, error)
}

type Assistant struct {
	gen     Generator
	catalog Catalog
	metrics *metrics.Metrics
}

func NewAssistant(gen Generator, catalog Catalog, m *metrics.Metrics) *Assistant {
	return &Assistant{gen: gen, catalog: catalog, metrics: m}
}

func (a *Assistant) ProductDescription(ctx context.Context, name, category string) Answer {
	prompt := fmt.Sprintf("Escribe una descripcion breve (maximo 3 oraciones) y profesional para el producto "+
		"de farmacia %q de la categoria %q. No hagas afirmaciones medicas.", name, category)
	return a.ask(ctx, "description", prompt, fallbackDescription)
}

func (a *Assistant) SocialPost(ctx context.Context, topic string) Answer {
	prompt := fmt.Sprintf("Escribe una publicacion corta y amigable para redes sociales de una farmacia sobre: %s. "+
		"Incluye un llamado a la accion y hasta 3 hashtags.", topic)
	return a.ask(ctx, "social", prompt, fallbackSocial)
}

// Chat answers message in the context of history, mentioning only products
// that are currently in stock.
func (a *Assistant) Chat(ctx context.Context, history []ChatMessage, message string) Answer {
	var b strings.Builder
	b.WriteString("Eres el asistente virtual de una farmacia. Responde en espanol, de forma breve. ")
	b.WriteString("No diagnostiques; recomienda consultar a un profesional cuando corresponda.\n")

	if a.catalog != nil {
		products, err := a.catalog.ListProducts(ctx, store.ProductFilter{InStockOnly: true, Limit: maxChatProducts})
		if err != nil {
			logger.FromContext(ctx).Warn("chat catalog unavailable", zap.Error(err))
		} else if len(products) > 0 {
			names := make([]string, len(products))
			for i, p := range products {
				names[i] = p.Name
			}
			b.WriteString("Productos disponibles: ")
			b.WriteString(strings.Join(names, ", "))
			b.WriteString(".\n")
		}
	}

	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	for _, m := range history {
		role := "Cliente"
		if m.Role == "assistant" || m.Role == "model" {
			role = "Asistente"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Text)
	}
	fmt.Fprintf(&b, "Cliente: %s\nAsistente:", message)
	return a.ask(ctx, "chat", b.String(), fallbackChat)
}

// CheckInteractions asks for known interactions between the named medications.
func (a *Assistant) CheckInteractions(ctx context.Context, names []string) Answer {
	if len(names) < 2 {
		return Answer{Text: "Se necesitan al menos dos medicamentos para verificar interacciones."}
	}
	prompt := "Analiza posibles interacciones entre estos medicamentos: " + strings.Join(names, ", ") +
		". Responde con un resumen breve para un paciente e indica si debe consultar a un medico."
	return a.ask(ctx, "interactions", prompt, fallbackInteractions)
}

func (a *Assistant) ask(ctx context.Context, operation, prompt, fallback string) Answer {
	if a.gen == nil {
		a.metrics.AIFallback(operation)
		return Answer{Text: fallback, Fallback: true}
	}
	text, err := a.gen.Generate(ctx, prompt)
	if err != nil {
		logger.FromContext(ctx).Warn("ai request failed, using fallback",
			zap.String("operation", operation), zap.Error(err))
		a.metrics.AIFallback(operation)
		return Answer{Text: fallback, Fallback: true}
	}
	return Answer{Text: text}
}
