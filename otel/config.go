package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
)

type config struct {
	// Attributes are added to every span.
	Attributes []attribute.KeyValue

	// GetAttributes extracts extra span attributes from the context.
	GetAttributes func(ctx context.Context) []attribute.KeyValue
}

type Option interface {
	apply(*config)
}

type optionFunc func(*config)

func (o optionFunc) apply(c *config) {
	o(c)
}

func WithAttributes(attrs ...attribute.KeyValue) Option {
	return optionFunc(func(o *config) {
		o.Attributes = attrs
	})
}

func WithAttributeGetter(fn func(ctx context.Context) []attribute.KeyValue) Option {
	return optionFunc(func(o *config) {
		o.GetAttributes = fn
	})
}

func newConfig(options []Option) *config {
	cfg := &config{}
	for _, o := range options {
		o.apply(cfg)
	}
	return cfg
}

func (c *config) attributes(ctx context.Context, base ...attribute.KeyValue) []attribute.KeyValue {
	attr := append(base, c.Attributes...)
	if c.GetAttributes != nil {
		attr = append(attr, c.GetAttributes(ctx)...)
	}
	return attr
}
