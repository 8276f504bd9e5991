// Package repository define las entidades del dominio y los contratos de
// persistencia que consumen los identity handlers: usuarios, applications
// (clients OAuth), authorizations, refresh tokens y scopes.
//
// Los handlers solo dependen de estas interfaces; los drivers concretos viven
// en internal/store/adapters.
package repository
