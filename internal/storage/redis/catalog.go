// Package redis caches the product catalog in Redis.
package redis

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/product"
)

const catalogKey = "storefront:catalog:products"

// Client is the subset of redis.Cmdable used by the cache.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ product.Repository = (*CatalogCache)(nil)

// CatalogCache is a read-through cache in front of a product.Repository.
// Redis failures are logged and the underlying repository is used instead,
// so the cache never turns a healthy database into a failed request.
type CatalogCache struct {
	client Client
	next   product.Repository
	ttl    time.Duration
}

// NewCatalogCache wraps next with a cache entry that lives for ttl.
func NewCatalogCache(client Client, next product.Repository, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, next: next, ttl: ttl}
}

// List returns the cached catalog, loading it from the repository on a miss.
func (c *CatalogCache) List(ctx context.Context) ([]product.Product, error) {
	lg := zctx.From(ctx)

	data, err := c.client.Get(ctx, catalogKey).Bytes()
	switch {
	case err == nil:
		products, err := decodeProducts(data)
		if err == nil {
			return products, nil
		}
		lg.Warn("Discarding corrupt catalog cache entry", zap.Error(err))
	case errors.Is(err, redis.Nil):
	default:
		lg.Warn("Catalog cache read failed", zap.Error(err))
	}

	products, err := c.next.List(ctx)
	if err != nil {
		return nil, err
	}

	if err := c.client.Set(ctx, catalogKey, encodeProducts(products), c.ttl).Err(); err != nil {
		lg.Warn("Catalog cache write failed", zap.Error(err))
	}
	return products, nil
}

// Invalidate drops the cached catalog.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, catalogKey).Err(); err != nil {
		return errors.Wrap(err, "invalidate catalog cache")
	}
	return nil
}

func encodeProducts(products []product.Product) []byte {
	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Int64(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("category")
		e.Str(p.Category)
		e.FieldStart("price")
		e.Str(p.Price.String())
		e.ObjEnd()
	}
	e.ArrEnd()
	return e.Bytes()
}

func decodeProducts(data []byte) ([]product.Product, error) {
	products := []product.Product{}
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Int64()
			case "name":
				p.Name, err = d.Str()
			case "category":
				p.Category, err = d.Str()
			case "price":
				var s string
				if s, err = d.Str(); err == nil {
					p.Price, err = decimal.NewFromString(s)
				}
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return products, nil
}
