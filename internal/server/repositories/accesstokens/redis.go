package accesstokens

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/redis/go-redis/v9"
)

// Each token is a hash at <prefix>:t:<token> holding the owner and creation
// time; <prefix>:u:<username> is the set of that user's live tokens. Scripts
// keep the two in step.

const createTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "user", ARGV[1], "created_at", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
return 1
`

const deleteTokenScript = `
local user = redis.call("HGET", KEYS[1], "user")
if not user then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", ARGV[1] .. user, ARGV[2])
return 1
`

const deleteUserTokensScript = `
local tokens = redis.call("SMEMBERS", KEYS[1])
local deleted = 0
for _, t in ipairs(tokens) do
  deleted = deleted + redis.call("DEL", ARGV[1] .. t)
end
redis.call("DEL", KEYS[1])
return deleted
`

var (
	createTokenLua      = redis.NewScript(createTokenScript)
	deleteTokenLua      = redis.NewScript(deleteTokenScript)
	deleteUserTokensLua = redis.NewScript(deleteUserTokensScript)
)

// RedisRepository stores tokens in Redis. It lets several server replicas
// share sessions while users stay in SQL.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "gophauth"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix}
}

func (r *RedisRepository) tokenPrefix() string { return r.prefix + ":t:" }
func (r *RedisRepository) userPrefix() string  { return r.prefix + ":u:" }

func (r *RedisRepository) tokenKey(token string) string   { return r.tokenPrefix() + token }
func (r *RedisRepository) userKey(username string) string { return r.userPrefix() + username }

func (r *RedisRepository) CreateIfAbsent(ctx context.Context, token *models.AccessToken) (bool, error) {
	res, err := createTokenLua.Run(ctx, r.rdb,
		[]string{r.tokenKey(token.Token), r.userKey(token.UserName)},
		token.UserName, token.CreatedAt.UnixMilli(), token.Token,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRepository) Find(ctx context.Context, token string) (*models.AccessToken, error) {
	fields, err := r.rdb.HGetAll(ctx, r.tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	user, ok := fields["user"]
	if !ok {
		return nil, common.ErrorNotFound
	}
	createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis error: corrupt created_at: %w", err)
	}
	return &models.AccessToken{Token: token, UserName: user, CreatedAt: time.UnixMilli(createdAt)}, nil
}

func (r *RedisRepository) Delete(ctx context.Context, token string) (bool, error) {
	res, err := deleteTokenLua.Run(ctx, r.rdb,
		[]string{r.tokenKey(token)},
		r.userPrefix(), token,
	).Int64()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return res == 1, nil
}

func (r *RedisRepository) DeleteAllForUser(ctx context.Context, username string) (int64, error) {
	res, err := deleteUserTokensLua.Run(ctx, r.rdb,
		[]string{r.userKey(username)},
		r.tokenPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}
	return res, nil
}
