package sessions

import (
	"context"
	"encoding/json"
	"time"

	apperrors "github.com/jrsteele09/go-pay-server/internal/errors"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "paygate:session:"

var _ Repo = (*RedisRepo)(nil)

// RedisRepo stores sealed sessions in Redis with a TTL matching the session expiry.
type RedisRepo struct {
	client  redis.Cmdable
	sealer  *Sealer
	nowFunc func() time.Time
}

type RedisRepoOption func(*RedisRepo)

func WithRedisNowFunc(now func() time.Time) RedisRepoOption {
	return func(r *RedisRepo) {
		r.nowFunc = now
	}
}

func NewRedisRepo(client redis.Cmdable, sealer *Sealer, options ...RedisRepoOption) *RedisRepo {
	r := &RedisRepo{
		client:  client,
		sealer:  sealer,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (r *RedisRepo) Put(ctx context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("session id is required")
	}
	ttl := session.ExpiresAt.Sub(r.nowFunc())
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	plain, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "RedisRepo.Put Marshal")
	}
	sealed, err := r.sealer.Seal(plain)
	if err != nil {
		return errors.Wrap(err, "RedisRepo.Put Seal")
	}
	if err := r.client.Set(ctx, keyPrefix+session.ID, sealed, ttl).Err(); err != nil {
		return errors.Wrap(err, "RedisRepo.Put Set")
	}
	return nil
}

func (r *RedisRepo) Get(ctx context.Context, sessionID string) (*Session, error) {
	if sessionID == "" {
		return nil, apperrors.ErrSessionNotFound
	}
	sealed, err := r.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrSessionNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "RedisRepo.Get")
	}

	plain, err := r.sealer.Open(sealed)
	if err != nil {
		log.Warn().Err(err).Msg("dropping unreadable session")
		r.Destroy(ctx, sessionID)
		return nil, apperrors.ErrSessionNotFound
	}
	session := &Session{}
	if err := json.Unmarshal(plain, session); err != nil {
		return nil, errors.Wrap(err, "RedisRepo.Get Unmarshal")
	}
	if session.Expired(r.nowFunc()) {
		return nil, apperrors.ErrSessionNotFound
	}
	return session, nil
}

func (r *RedisRepo) Destroy(ctx context.Context, sessionID string) {
	if sessionID == "" {
		return
	}
	if err := r.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		log.Err(err).Msg("failed to delete session")
	}
}
