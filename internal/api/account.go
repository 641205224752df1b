package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"finsight/internal/core"
)

const (
	cacheKeyProfile  = "profile"
	cacheKeySettings = "settings"
)

// cachedGet serves path from the response cache when enabled, otherwise
// fetches it and stores the raw body.
func (c *Client) cachedGet(ctx context.Context, op, key, path string, out any) error {
	if c.cache != nil {
		if raw, ok := c.cache.Get(key); ok {
			return decodeInto(op, raw, out)
		}
	}
	raw, err := c.do(ctx, op, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}
	if err := decodeInto(op, raw, out); err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(key, raw)
	}
	return nil
}

func (c *Client) remember(key string, v any) {
	if c.cache == nil {
		return
	}
	if raw, err := json.Marshal(v); err == nil {
		c.cache.Set(key, raw)
	} else {
		c.cache.Delete(key)
	}
}

func (c *Client) GetProfile(ctx context.Context) (core.Profile, error) {
	var p core.Profile
	if err := c.cachedGet(ctx, "get profile", cacheKeyProfile, "/profile", &p); err != nil {
		return core.Profile{}, err
	}
	return p, nil
}

func (c *Client) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	const op = "update profile"
	if strings.TrimSpace(p.Username) == "" {
		return core.Profile{}, validationError(op, errors.New("username is required"))
	}
	if c.cache != nil {
		c.cache.Delete(cacheKeyProfile)
	}

	var out core.Profile
	if err := c.doJSON(ctx, op, http.MethodPut, "/profile", p, &out); err != nil {
		return core.Profile{}, err
	}
	c.remember(cacheKeyProfile, out)
	return out, nil
}

func (c *Client) GetSettings(ctx context.Context) (core.Settings, error) {
	var s core.Settings
	if err := c.cachedGet(ctx, "get settings", cacheKeySettings, "/settings", &s); err != nil {
		return core.Settings{}, err
	}
	return s, nil
}

func (c *Client) UpdateSettings(ctx context.Context, s core.Settings) (core.Settings, error) {
	const op = "update settings"
	if c.cache != nil {
		c.cache.Delete(cacheKeySettings)
	}

	var out core.Settings
	if err := c.doJSON(ctx, op, http.MethodPut, "/settings", s, &out); err != nil {
		return core.Settings{}, err
	}
	c.remember(cacheKeySettings, out)
	return out, nil
}

func (c *Client) ListPosts(ctx context.Context) ([]core.Post, error) {
	var out []core.Post
	if err := c.doJSON(ctx, "list posts", http.MethodGet, "/posts", nil, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Post{}
	}
	return out, nil
}

func (c *Client) CreatePost(ctx context.Context, title, content string) (core.Post, error) {
	const op = "create post"
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return core.Post{}, validationError(op, errors.New("title and content are required"))
	}

	var out core.Post
	in := map[string]string{"title": title, "content": content}
	if err := c.doJSON(ctx, op, http.MethodPost, "/posts", in, &out); err != nil {
		return core.Post{}, err
	}
	return out, nil
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	const op = "delete post"
	id, err := escapeID(op, id)
	if err != nil {
		return err
	}
	return c.doJSON(ctx, op, http.MethodDelete, "/posts/"+id, nil, nil)
}

func (c *Client) AddComment(ctx context.Context, postID, content string) (core.Comment, error) {
	const op = "add comment"
	postID, err := escapeID(op, postID)
	if err != nil {
		return core.Comment{}, err
	}
	if strings.TrimSpace(content) == "" {
		return core.Comment{}, validationError(op, errors.New("comment is empty"))
	}

	var out core.Comment
	in := map[string]string{"content": content}
	if err := c.doJSON(ctx, op, http.MethodPost, "/posts/"+postID+"/comments", in, &out); err != nil {
		return core.Comment{}, err
	}
	return out, nil
}

// LikePost registers a like and returns the updated post.
func (c *Client) LikePost(ctx context.Context, postID string) (core.Post, error) {
	const op = "like post"
	postID, err := escapeID(op, postID)
	if err != nil {
		return core.Post{}, err
	}

	var out core.Post
	if err := c.doJSON(ctx, op, http.MethodPost, "/posts/"+postID+"/like", nil, &out); err != nil {
		return core.Post{}, err
	}
	return out, nil
}
