// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP helpers shared by all handlers.

  - WithLogging: per-request slog line with method, path, status, duration
  - JSONResponse / ErrorResponse: JSON encoding with consistent error shape
  - ParseJSONBody: request body decoding
  - CORS: cross-origin headers and preflight handling
  - GetClientIP: client address extraction behind proxies
*/
package middleware
