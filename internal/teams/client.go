// Package teams talks to the chat service's native (internal) endpoints.
//
// The web client uses undocumented Skype-based APIs for chat operations.
// The flow is: exchange the MSAL skype access token for a service token via
// the authz endpoint, then use that token against the region-specific chat
// service URL for all conversation operations.
package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tmzdev/tmz/internal/auth"
)

const (
	authzURL = "https://teams.microsoft.com/api/authsvc/v1.0/authz"
	asmURL   = "https://api.asm.skype.com/v1/objects"
)

// APIError is a non-success response from the remote service.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote api: status %d: %s", e.Status, e.Body)
}

// Session is the result of the authz exchange: a service token plus
// region-specific service URLs.
type Session struct {
	ServiceToken   string
	SkypeID        string
	ChatServiceURL string
	ExpiresAt      int64
}

// Client is the remote conversation/message service collaborator.
type Client struct {
	http   *http.Client
	auth   *auth.Manager
	logger *zap.Logger

	mu      sync.Mutex
	session *Session
}

// NewClient creates a remote API client.
func NewClient(am *auth.Manager, logger *zap.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: 60 * time.Second},
		auth:   am,
		logger: logger,
	}
}

// getSession exchanges the cached credential bundle for a chat-service
// session, reusing the previous session while it remains unexpired.
func (c *Client) getSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil && c.session.ExpiresAt > time.Now().Unix()+60 {
		return c.session, nil
	}

	bundle, err := c.auth.GetValidOrRefresh(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authzURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+bundle.SkypeToken)
	req.Header.Set("Content-Length", "0")

	payload, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var settings struct {
		Tokens struct {
			SkypeToken string `json:"skypeToken"`
		} `json:"tokens"`
		RegionGtms struct {
			ChatService string `json:"chatService"`
		} `json:"regionGtms"`
	}
	if err := json.Unmarshal(payload, &settings); err != nil {
		return nil, fmt.Errorf("parsing authz response: %w", err)
	}
	if settings.Tokens.SkypeToken == "" {
		return nil, fmt.Errorf("missing skypeToken in authz response")
	}
	if settings.RegionGtms.ChatService == "" {
		return nil, fmt.Errorf("missing chatService URL in authz response")
	}

	skypeID, expiresAt := decodeServiceToken(settings.Tokens.SkypeToken)
	c.session = &Session{
		ServiceToken:   settings.Tokens.SkypeToken,
		SkypeID:        skypeID,
		ChatServiceURL: settings.RegionGtms.ChatService,
		ExpiresAt:      expiresAt,
	}
	c.logger.Debug("chat service session established",
		zap.String("chat_service", c.session.ChatServiceURL))
	return c.session, nil
}

// ListConversations fetches the full conversation list as raw payloads.
func (c *Client) ListConversations(ctx context.Context) ([]map[string]any, error) {
	session, err := c.getSession(ctx)
	if err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/v1/users/ME/conversations?view=msnp24Equivalent&pageSize=500",
		session.ChatServiceURL)
	payload, err := c.get(ctx, session, u)
	if err != nil {
		return nil, err
	}

	var data struct {
		Conversations []map[string]any `json:"conversations"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("parsing conversations: %w", err)
	}
	return data.Conversations, nil
}

// GetMessages fetches the most recent messages of a conversation as raw
// payloads, annotating each with an isFromMe flag derived from the session.
func (c *Client) GetMessages(ctx context.Context, conversationID string, pageSize int) ([]map[string]any, error) {
	session, err := c.getSession(ctx)
	if err != nil {
		return nil, err
	}
	if pageSize <= 0 {
		pageSize = 200
	}

	u := fmt.Sprintf("%s/v1/users/ME/conversations/%s/messages?startTime=0&view=msnp24Equivalent&pageSize=%d",
		session.ChatServiceURL, url.PathEscape(conversationID), pageSize)
	payload, err := c.get(ctx, session, u)
	if err != nil {
		return nil, err
	}

	var data struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("parsing messages: %w", err)
	}

	for _, msg := range data.Messages {
		from, _ := msg["from"].(string)
		msg["isFromMe"] = session.SkypeID != "" && strings.HasSuffix(from, session.SkypeID)
	}
	return data.Messages, nil
}

// SendMessage posts a plain text message. Sends are fire-and-report: the
// returned id is the client message id used for the request.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string) (string, error) {
	session, err := c.getSession(ctx)
	if err != nil {
		return "", err
	}
	clientMsgID := uuid.NewString()
	body := map[string]any{
		"messagetype":     "RichText/Html",
		"content":         content,
		"clientmessageid": clientMsgID,
	}
	if err := c.postMessage(ctx, session, conversationID, body); err != nil {
		return "", err
	}
	return clientMsgID, nil
}

// SendFile uploads a file to the blob store and sends a file-card message
// referencing the uploaded object.
func (c *Client) SendFile(ctx context.Context, conversationID, fileName string, data []byte) (string, error) {
	session, err := c.getSession(ctx)
	if err != nil {
		return "", err
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	isImage := false
	switch ext {
	case "jpg", "jpeg", "png", "gif", "bmp", "webp":
		isImage = true
	}

	objID, err := c.uploadObject(ctx, session, conversationID, fileName, data, ext, isImage)
	if err != nil {
		return "", err
	}

	objURL := asmURL + "/" + objID
	msgType, content := buildFileMessage(objID, objURL, fileName, len(data), isImage)

	clientMsgID := uuid.NewString()
	body := map[string]any{
		"messagetype":     msgType,
		"content":         content,
		"clientmessageid": clientMsgID,
	}
	if err := c.postMessage(ctx, session, conversationID, body); err != nil {
		return "", err
	}
	return clientMsgID, nil
}

func (c *Client) uploadObject(ctx context.Context, session *Session, conversationID, fileName string, data []byte, ext string, isImage bool) (string, error) {
	objType := "sharing/file"
	if isImage {
		objType = "pish/image"
	}
	meta := map[string]any{
		"type": objType,
		"permissions": map[string]any{
			conversationID: []string{"read"},
		},
	}
	if !isImage {
		meta["filename"] = fileName
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, asmURL, bytes.NewReader(metaJSON))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "skype_token "+session.ServiceToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Version", "0/0.0.0.0")

	payload, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("creating upload object: %w", err)
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &obj); err != nil || obj.ID == "" {
		return "", fmt.Errorf("missing object id in upload response")
	}

	contentPath := "original"
	if isImage {
		contentPath = "imgpsh"
	}
	uploadURL := fmt.Sprintf("%s/%s/content/%s", asmURL, obj.ID, contentPath)

	put, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	put.Header.Set("Authorization", "skype_token "+session.ServiceToken)
	put.Header.Set("Content-Type", contentTypeForExt(ext))

	if _, err := c.do(put); err != nil {
		return "", fmt.Errorf("uploading content: %w", err)
	}
	return obj.ID, nil
}

// DownloadAsset fetches a blob-store object (message attachment, avatar)
// with the service token, returning the content and its content type.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) ([]byte, string, error) {
	session, err := c.getSession(ctx)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("Authorization", "skype_token "+session.ServiceToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &APIError{Status: resp.StatusCode, Body: string(payload)}
	}
	return payload, resp.Header.Get("Content-Type"), nil
}

func (c *Client) postMessage(ctx context.Context, session *Session, conversationID string, body map[string]any) error {
	u := fmt.Sprintf("%s/v1/users/ME/conversations/%s/messages",
		session.ChatServiceURL, url.PathEscape(conversationID))
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(bodyJSON))
	if err != nil {
		return err
	}
	req.Header.Set("Authentication", "skypetoken="+session.ServiceToken)
	req.Header.Set("Content-Type", "application/json")
	_, err = c.do(req)
	return err
}

func (c *Client) get(ctx context.Context, session *Session, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authentication", "skypetoken="+session.ServiceToken)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: string(payload)}
	}
	return payload, nil
}

// decodeServiceToken pulls the skype id and expiry out of the service
// token's claims. Returns zero values when the token is not decodable; the
// session then just gets re-exchanged on the next call.
func decodeServiceToken(token string) (string, int64) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", 0
	}
	skypeID, _ := claims["skypeid"].(string)
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return skypeID, 0
	}
	return skypeID, exp.Unix()
}

func contentTypeForExt(ext string) string {
	if ct := mime.TypeByExtension("." + ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func buildFileMessage(objID, objURL, fileName string, size int, isImage bool) (msgType, content string) {
	if isImage {
		content = fmt.Sprintf(
			`<URIObject type="Picture.1" uri="%s" url_thumbnail="%s/views/imgt1"><OriginalName v="%s"/><FileSize v="%d"/></URIObject>`,
			objURL, objURL, fileName, size)
		return "RichText/UriObject", content
	}
	content = fmt.Sprintf(
		`<URIObject type="File.1" uri="%s" url_thumbnail="%s/views/thumbnail"><OriginalName v="%s"/><FileSize v="%d"/><a href="%s">%s</a></URIObject>`,
		objURL, objURL, fileName, size, objURL, fileName)
	return "RichText/Media_GenericFile", content
}
