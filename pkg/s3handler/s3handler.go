// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package s3handler serves GET requests out of an S3 bucket as an
// ordinary handler.Handler.
package s3handler

import (
	"context"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/foxwire/emberhttp/pkg/handler"
	"github.com/foxwire/emberhttp/pkg/httpmodel"
)

// API is the subset of *s3.Client this handler needs, so tests can fake it
// without a real bucket.
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Handler serves GET <Prefix><path> from Bucket via client.
type Handler struct {
	Client API
	Bucket string
	Prefix string
}

// New builds a Handler.
func New(client API, bucket, prefix string) *Handler {
	return &Handler{Client: client, Bucket: bucket, Prefix: prefix}
}

// Serve implements handler.Handler. Non-GET requests are rejected with
// 404 (routing should already exclude them; this is defense against
// misconfiguration, not a documented contract).
var _ handler.Handler = (*Handler)(nil)

func (h *Handler) Serve(ctx context.Context, req *httpmodel.Request) (*httpmodel.Response, error) {
	if !strings.EqualFold(req.Method, "GET") {
		return httpmodel.NewResponse(404, nil), nil
	}

	key := h.Prefix + strings.TrimPrefix(req.Path, "/")
	out, err := h.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return httpmodel.NewResponse(404, nil), nil
		}
		return nil, err
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, err
	}

	res := httpmodel.NewResponse(200, body)
	if out.ContentType != nil {
		res.Headers.Set("Content-Type", *out.ContentType)
	}
	return res, nil
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if ok := asAPIError(err, &apiErr); ok {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func asAPIError(err error, target *smithy.APIError) bool {
	for err != nil {
		if ae, ok := err.(smithy.APIError); ok {
			*target = ae
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
