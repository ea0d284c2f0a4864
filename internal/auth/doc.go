// Package auth issues and verifies the bearer tokens that guard command
// ingress.
//
// Tokens are HS256 JWTs signed with security.jwt.secret. They carry a scope
// so a token minted for reading history cannot publish commands. With no
// secret configured the API runs open, which suits a bench network only.
package auth
