// Package auth provides authentication and authorisation for Shopdesk Core.
//
// It implements a 2-tier role model (user → admin) with:
//   - Argon2id password hashing (OWASP 2025 recommendation)
//   - JWT access/refresh token rotation with family-based theft detection
//   - Static role-permission mapping (compile-time, no database lookup)
//
// Staff accounts default to the user role, which covers the day-to-day
// surface (customers, bookings, documents, messages). The admin role adds
// account management, the service catalog and system settings.
package auth
