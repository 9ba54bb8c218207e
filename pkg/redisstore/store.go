package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietparty/room-server/pkg/models"
)

// Key layout: everything a room owns lives under room:<code>:* with a shared
// TTL so a crashed coordinator leaves nothing behind.
const roomTTL = 12 * time.Hour

func metaKey(code string) string       { return fmt.Sprintf("room:%s:meta", code) }
func queueKey(code string) string      { return fmt.Sprintf("room:%s:queue", code) }
func nowPlayingKey(code string) string { return fmt.Sprintf("room:%s:now_playing", code) }

func pendingCountKey(code, userID string) string {
	return fmt.Sprintf("room:%s:user:%s:pending_count", code, userID)
}

func pendingVideoKey(code, userID string) string {
	return fmt.Sprintf("room:%s:user:%s:pending_videos", code, userID)
}

// enqueueScript checks the room, the member's pending quota and the member's
// media dedup set, then inserts and updates both counters in one atomic step.
var enqueueScript = redis.NewScript(`
local roomMetaKey = KEYS[1]
local queueKey = KEYS[2]
local pendingCountKey = KEYS[3]
local pendingVideoSetKey = KEYS[4]

local songJson = ARGV[1]
local isPriority = ARGV[2]
local videoId = ARGV[3]
local quota = tonumber(ARGV[4])
local ttl = tonumber(ARGV[5])

if redis.call('EXISTS', roomMetaKey) == 0 then
  return redis.error_reply('ROOM_NOT_FOUND')
end

local pendingCount = tonumber(redis.call('GET', pendingCountKey) or '0')
if pendingCount >= quota then
  return redis.error_reply('PENDING_LIMIT')
end

if redis.call('SISMEMBER', pendingVideoSetKey, videoId) == 1 then
  return redis.error_reply('DUPLICATE_MEDIA')
end

if isPriority == '1' then
  redis.call('LPUSH', queueKey, songJson)
else
  redis.call('RPUSH', queueKey, songJson)
end

redis.call('INCR', pendingCountKey)
redis.call('SADD', pendingVideoSetKey, videoId)
redis.call('EXPIRE', pendingCountKey, ttl)
redis.call('EXPIRE', pendingVideoSetKey, ttl)

return 1
`)

// saveNowPlayingScript records an instant-play commit: the song goes straight
// to now-playing, holding its owner's quota slot and dedup entry while it
// plays.
var saveNowPlayingScript = redis.NewScript(`
local nowPlayingKey = KEYS[1]
local pendingCountKey = KEYS[2]
local pendingVideoSetKey = KEYS[3]

local songJson = ARGV[1]
local videoId = ARGV[2]
local ttl = tonumber(ARGV[3])

redis.call('SET', nowPlayingKey, songJson, 'EX', ttl)
redis.call('INCR', pendingCountKey)
redis.call('SADD', pendingVideoSetKey, videoId)
redis.call('EXPIRE', pendingCountKey, ttl)
redis.call('EXPIRE', pendingVideoSetKey, ttl)

return 1
`)

// popNextScript releases the finished (previous now-playing) owner's quota
// slot and dedup entry, then promotes the queue head to now-playing. The
// promoted song keeps holding its owner's slot until the next pop.
var popNextScript = redis.NewScript(`
local queueKey = KEYS[1]
local nowPlayingKey = KEYS[2]

local finished = redis.call('GET', nowPlayingKey)
if finished then
  local decoded = cjson.decode(finished)
  local countKey = 'room:' .. decoded.roomCode .. ':user:' .. decoded.addedByUserId .. ':pending_count'
  local videoSetKey = 'room:' .. decoded.roomCode .. ':user:' .. decoded.addedByUserId .. ':pending_videos'

  redis.call('DECR', countKey)
  if tonumber(redis.call('GET', countKey) or '0') <= 0 then
    redis.call('DEL', countKey)
  end
  redis.call('SREM', videoSetKey, decoded.videoId)
end

local nextSong = redis.call('LPOP', queueKey)
if not nextSong then
  redis.call('DEL', nowPlayingKey)
  return ''
end

redis.call('SET', nowPlayingKey, nextSong)
return nextSong
`)

// removeSongScript rebuilds the list without the first matching id, with the
// same quota/dedup cleanup as a pop.
var removeSongScript = redis.NewScript(`
local queueKey = KEYS[1]
local songId = ARGV[1]

local items = redis.call('LRANGE', queueKey, 0, -1)
if #items == 0 then
  return 0
end

redis.call('DEL', queueKey)
local removed = nil

for i = 1, #items do
  local song = cjson.decode(items[i])
  if song.id == songId and not removed then
    removed = song
  else
    redis.call('RPUSH', queueKey, items[i])
  end
end

if removed then
  local countKey = 'room:' .. removed.roomCode .. ':user:' .. removed.addedByUserId .. ':pending_count'
  local videoSetKey = 'room:' .. removed.roomCode .. ':user:' .. removed.addedByUserId .. ':pending_videos'

  redis.call('DECR', countKey)
  if tonumber(redis.call('GET', countKey) or '0') <= 0 then
    redis.call('DEL', countKey)
  end
  redis.call('SREM', videoSetKey, removed.videoId)

  return 1
end

return 0
`)

// Store mirrors room queue state into Redis through server-side atomic
// scripts, so the check-and-mutate stays indivisible even if a second
// coordinator process shares the same instance.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) SaveRoomMeta(ctx context.Context, state models.RoomState) error {
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal room state: %w", err)
	}
	if err := s.client.Set(ctx, metaKey(state.RoomCode), stateJSON, roomTTL).Err(); err != nil {
		return fmt.Errorf("failed to store room meta: %w", err)
	}
	return nil
}

func (s *Store) Enqueue(ctx context.Context, song models.QueueSong, priority bool) error {
	songJSON, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal song: %w", err)
	}

	priorityArg := "0"
	if priority {
		priorityArg = "1"
	}

	keys := []string{
		metaKey(song.RoomCode),
		queueKey(song.RoomCode),
		pendingCountKey(song.RoomCode, song.AddedByUserID),
		pendingVideoKey(song.RoomCode, song.AddedByUserID),
	}
	err = enqueueScript.Run(ctx, s.client, keys,
		string(songJSON), priorityArg, song.VideoID, 2, int(roomTTL.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("enqueue script: %w", err)
	}
	return nil
}

func (s *Store) SaveNowPlaying(ctx context.Context, song models.QueueSong) error {
	songJSON, err := json.Marshal(song)
	if err != nil {
		return fmt.Errorf("failed to marshal song: %w", err)
	}

	keys := []string{
		nowPlayingKey(song.RoomCode),
		pendingCountKey(song.RoomCode, song.AddedByUserID),
		pendingVideoKey(song.RoomCode, song.AddedByUserID),
	}
	err = saveNowPlayingScript.Run(ctx, s.client, keys,
		string(songJSON), song.VideoID, int(roomTTL.Seconds())).Err()
	if err != nil {
		return fmt.Errorf("save now playing script: %w", err)
	}
	return nil
}

func (s *Store) PopNext(ctx context.Context, roomCode string) (*models.QueueSong, error) {
	result, err := popNextScript.Run(ctx, s.client,
		[]string{queueKey(roomCode), nowPlayingKey(roomCode)}).Text()
	if err != nil {
		return nil, fmt.Errorf("pop next script: %w", err)
	}
	if result == "" {
		return nil, nil
	}

	var song models.QueueSong
	if err := json.Unmarshal([]byte(result), &song); err != nil {
		return nil, fmt.Errorf("failed to unmarshal song: %w", err)
	}
	return &song, nil
}

func (s *Store) RemoveSong(ctx context.Context, roomCode, songID string) (bool, error) {
	removed, err := removeSongScript.Run(ctx, s.client,
		[]string{queueKey(roomCode)}, songID).Int()
	if err != nil {
		return false, fmt.Errorf("remove song script: %w", err)
	}
	return removed == 1, nil
}

func (s *Store) DeleteRoom(ctx context.Context, roomCode string) error {
	pattern := fmt.Sprintf("room:%s:*", roomCode)
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan room keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// ── search cache ──

const searchCacheTTL = 15 * time.Minute

func searchCacheKey(query string) string {
	return "youtube:search:" + strings.ToLower(strings.TrimSpace(query))
}

// GetSearchCache reports whether the query was cached, decoding into out on a hit.
func (s *Store) GetSearchCache(ctx context.Context, query string, out any) (bool, error) {
	data, err := s.client.Get(ctx, searchCacheKey(query)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read search cache: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached search: %w", err)
	}
	return true, nil
}

func (s *Store) SetSearchCache(ctx context.Context, query string, results any) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal search results: %w", err)
	}
	return s.client.Set(ctx, searchCacheKey(query), data, searchCacheTTL).Err()
}
