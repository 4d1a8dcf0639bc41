package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"
)

// ImageRequest describes the device an image is built for
type ImageRequest struct {
	TargetName      string
	BoardName       string
	TargetVersion   string
	CurrentRelease  string
	CurrentRevision string
	// Packages are "name" or "name,alias1,alias2" entries
	Packages []string
}

// Query encodes the request as /api query parameters
func (r *ImageRequest) Query() string {
	params := url.Values{}
	params.Set("target_name", r.TargetName)
	params.Set("board_name", r.BoardName)
	if r.TargetVersion != "" {
		params.Set("target_version", r.TargetVersion)
	}
	if r.CurrentRelease != "" {
		params.Set("current_release", r.CurrentRelease)
	}
	if r.CurrentRevision != "" {
		params.Set("current_revision", r.CurrentRevision)
	}
	for _, p := range r.Packages {
		params.Add("pkgs", p)
	}
	return "?" + params.Encode()
}

// Image describes a downloaded image
type Image struct {
	Name        string
	Size        int64
	OperationID string
}

// ListPackages returns the package list an image would be built with
func (c *Client) ListPackages(ctx context.Context, req *ImageRequest) ([]string, string, error) {
	resp, err := c.RawGet(ctx, "/api/list"+req.Query())
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response: %w", err)
	}
	return strings.Fields(string(body)), resp.Header.Get("X-Operation-Id"), nil
}

// BuildImage builds an image and copies it to w
func (c *Client) BuildImage(ctx context.Context, req *ImageRequest, w io.Writer) (*Image, error) {
	resp, err := c.RawGet(ctx, "/api/build"+req.Query())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	image := &Image{
		Name:        imageName(resp.Header.Get("Content-Disposition")),
		OperationID: resp.Header.Get("X-Operation-Id"),
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return nil, fmt.Errorf("image truncated: got %d of %d bytes", n, resp.ContentLength)
	}
	image.Size = n
	return image, nil
}

func imageName(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
