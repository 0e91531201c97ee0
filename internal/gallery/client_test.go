package gallery

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
)

func TestClient_PublishListImage(t *testing.T) {
	mb := &memBackend{}
	srv := httptest.NewServer(NewHandler(mb, "s3cret"))
	defer srv.Close()
	ctx := context.Background()

	c := NewClient(srv.URL+"/", "")
	if _, err := c.Publish(ctx, Entry{Title: "nope", TextureSize: 4, PNG: tinyPNG(t)}); err == nil {
		t.Fatalf("publish without token succeeded")
	}
	if err := c.RequestToken(ctx, "painter"); err != nil {
		t.Fatalf("RequestToken: %v", err)
	}
	img := tinyPNG(t)
	id, err := c.Publish(ctx, Entry{Title: "first light", TextureSize: 4, Wrap: "repeat", Filter: "bilinear", SessionID: "abc", PNG: img})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	items, err := c.List(ctx, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != id || items[0].Author != "painter" || items[0].Wrap != "repeat" || items[0].SessionID != "abc" {
		t.Fatalf("items = %+v", items)
	}
	got, err := c.Image(ctx, id)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if !bytes.Equal(got, img) {
		t.Fatalf("image bytes differ")
	}
	if _, err := c.Publish(ctx, Entry{Title: "", TextureSize: 4, PNG: img}); err == nil {
		t.Fatalf("invalid entry accepted")
	}
}
