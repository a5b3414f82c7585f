// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CyberWhale Contributors

// Package client keeps a user's session on the calling side of the HTTP
// API.
//
// A Session is Anonymous until Login or Register succeeds, and returns to
// Anonymous on Logout or when Start finds that the remembered token no
// longer names a live session. Tokens live in a TokenStore; the CLI uses a
// FileTokenStore under the XDG state directory.
package client
