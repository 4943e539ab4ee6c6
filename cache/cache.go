// Copyright 2019 The Morning Consult, LLC or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License"). You may
// not use this file except in compliance with the License. A copy of the
// License is located at
//
//         https://www.apache.org/licenses/LICENSE-2.0
//
// or in the "license" file accompanying this file. This file is distributed
// on an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either
// express or implied. See the License for the specific language governing
// permissions and limitations under the License.

// Package cache holds the in-memory state shared by concurrent password
// retrievals: the account directory built during discovery and the
// passwords fetched from the vault.
package cache

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Account locates an account inside the vault.
type Account struct {
	// GroupID is the ID of the resource the account belongs to.
	GroupID string

	// AccountID is the ID of the account inside its resource.
	AccountID string
}

// Directory maps account names to their location in the vault. Its
// contents are only ever replaced as a whole.
type Directory struct {
	mu       sync.RWMutex
	accounts *gocache.Cache
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		accounts: gocache.New(gocache.NoExpiration, 0),
	}
}

// Replace discards every entry of the directory and installs accounts
// in their place.
func (d *Directory) Replace(accounts map[string]Account) {
	items := make(map[string]gocache.Item, len(accounts))
	for name, account := range accounts {
		items[name] = gocache.Item{Object: account}
	}

	next := gocache.NewFrom(gocache.NoExpiration, 0, items)

	d.mu.Lock()
	d.accounts = next
	d.mu.Unlock()
}

// Lookup returns the account registered under name.
func (d *Directory) Lookup(name string) (Account, bool) {
	d.mu.RLock()
	accounts := d.accounts
	d.mu.RUnlock()

	v, ok := accounts.Get(name)
	if !ok {
		return Account{}, false
	}
	return v.(Account), true
}

// Len returns the number of accounts in the directory.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.accounts.ItemCount()
}

// Password is a password as last fetched from the vault.
type Password struct {
	Value     string
	FetchedAt time.Time
}

// StaleSince reports whether the password was fetched before t.
func (p Password) StaleSince(t time.Time) bool {
	return p.FetchedAt.Before(t)
}

// PasswordCache stores the last fetched password of every account. It
// is safe for concurrent use.
type PasswordCache struct {
	passwords *gocache.Cache
}

// NewPasswordCache returns an empty PasswordCache.
func NewPasswordCache() *PasswordCache {
	return &PasswordCache{
		passwords: gocache.New(gocache.NoExpiration, 0),
	}
}

// Get returns the cached password of the named account.
func (c *PasswordCache) Get(name string) (Password, bool) {
	v, ok := c.passwords.Get(name)
	if !ok {
		return Password{}, false
	}
	return v.(Password), true
}

// Set records value as the password of the named account, overwriting
// any previous entry.
func (c *PasswordCache) Set(name, value string, fetchedAt time.Time) {
	c.passwords.Set(name, Password{Value: value, FetchedAt: fetchedAt}, gocache.NoExpiration)
}

// Len returns the number of cached passwords.
func (c *PasswordCache) Len() int {
	return c.passwords.ItemCount()
}
