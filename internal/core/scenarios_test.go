// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 OrderDesk Contributors

package core_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/orderdesk/orderdesk/internal/access"
	"github.com/orderdesk/orderdesk/internal/audit"
	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/core"
	"github.com/orderdesk/orderdesk/internal/orders"
)

const (
	alicePassword = "Str0ng!Passw0rd"
	origin        = "203.0.113.7"
)

var _ = Describe("Engine", func() {
	var (
		ctx context.Context
		env *testEnv
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		env, err = newTestEnv()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(env.engine.Close)
	})

	Describe("account lockout", func() {
		var alice auth.User

		BeforeEach(func() {
			var err error
			alice, err = env.engine.Register(ctx, "alice@example.com", "Alice", alicePassword, alicePassword)
			Expect(err).NotTo(HaveOccurred())
		})

		It("locks after five failures and unlocks after ten minutes", func() {
			for range 5 {
				_, err := env.engine.Authenticate(ctx, "alice@example.com", "wrong", origin)
				Expect(err).To(MatchError(auth.ErrInvalidCredentials))
				Expect(err).NotTo(MatchError(auth.ErrAccountLocked))
			}

			By("rejecting the correct password while locked")
			_, err := env.engine.Authenticate(ctx, "alice@example.com", alicePassword, origin)
			Expect(err).To(MatchError(auth.ErrAccountLocked))
			Expect(err).NotTo(MatchError(auth.ErrInvalidCredentials))

			got, err := env.engine.Users().GetByID(ctx, alice.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.FailedAttempts).To(Equal(5))

			logins := env.entries(audit.ActionLogin)
			Expect(logins).To(HaveLen(6))
			Expect(logins[0].Detail).To(Equal("Locked"))
			Expect(logins[1].Detail).To(Equal("Failed attempts: 5"))
			Expect(logins[0].Origin).To(Equal(origin))

			By("accepting the password once the lockout has passed")
			env.clock.Advance(10 * time.Minute)
			user, err := env.engine.Authenticate(ctx, "alice@example.com", alicePassword, origin)
			Expect(err).NotTo(HaveOccurred())
			Expect(user.FailedAttempts).To(BeZero())
			Expect(user.LockedUntil).To(BeNil())
			Expect(env.entries(audit.ActionLogin)[0].Outcome).To(Equal(audit.OutcomeSuccess))
		})

		It("does not reveal whether an account exists", func() {
			_, unknown := env.engine.Authenticate(ctx, "nobody@example.com", "whatever", origin)
			_, wrong := env.engine.Authenticate(ctx, "alice@example.com", "whatever", origin)
			Expect(unknown.Error()).To(Equal(wrong.Error()))
		})
	})

	Describe("registration", func() {
		It("audits a password mismatch without creating the account", func() {
			_, err := env.engine.Register(ctx, "bob@example.com", "Bob", alicePassword, alicePassword+"x")
			Expect(err).To(HaveOccurred())
			Expect(env.engine.Users().Count()).To(BeZero())

			entries := env.entries(audit.ActionRegisterValidation)
			Expect(entries).To(HaveLen(1))
			Expect(entries[0].Detail).To(Equal("Password mismatch"))
		})

		It("hides duplicate emails behind a generic error", func() {
			_, err := env.engine.Register(ctx, "bob@example.com", "Bob", alicePassword, alicePassword)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.engine.Register(ctx, "BOB@example.com", "Bobby", alicePassword, alicePassword)
			Expect(err).To(MatchError(core.ErrRegistrationFailed))
			Expect(err).NotTo(MatchError(auth.ErrDuplicateEmail))
			Expect(err.Error()).To(Equal("Unable to register with those details."))

			failures := env.entries(audit.ActionUserRegister)
			Expect(failures[0].Outcome).To(Equal(audit.OutcomeFailure))
			Expect(failures[0].Detail).To(Equal("Duplicate or invalid data"))
		})
	})

	Describe("route gate", func() {
		var managerToken, adminToken string

		BeforeEach(func() {
			_, err := env.engine.Seed(ctx, append(core.DefaultSeedAccounts(), core.SeedAccount{
				Email:    "manager@example.com",
				Name:     "Manager",
				Password: alicePassword,
				Role:     auth.RoleManager,
			}))
			Expect(err).NotTo(HaveOccurred())

			sess, _, err := env.engine.Login(ctx, "manager@example.com", alicePassword, origin)
			Expect(err).NotTo(HaveOccurred())
			managerToken = sess.Token

			sess, _, err = env.engine.Login(ctx, core.DefaultAdminEmail, core.DefaultAdminPassword, origin)
			Expect(err).NotTo(HaveOccurred())
			adminToken = sess.Token
		})

		It("denies a manager the audit trail and records it", func() {
			_, err := env.engine.Guard(ctx, managerToken, "/admin/logs", origin)
			Expect(err).To(MatchError(access.ErrForbidden))

			denials := env.entries(audit.ActionForbidden)
			Expect(denials).To(HaveLen(1))
			Expect(denials[0].Detail).To(Equal("/admin/logs"))
			Expect(denials[0].HasUser()).To(BeTrue())
		})

		It("admits an admin to the audit trail", func() {
			p, err := env.engine.Guard(ctx, adminToken, "/admin/logs", origin)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.User.Role).To(Equal(auth.RoleAdmin))

			entries, err := env.engine.AuditTrail(ctx, p.Actor(), 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).NotTo(BeEmpty())
		})

		It("rejects a missing session on a protected route", func() {
			_, err := env.engine.Guard(ctx, "", "/orders", origin)
			Expect(err).To(MatchError(core.ErrUnauthenticated))

			denials := env.entries(audit.ActionUnauthenticated)
			Expect(denials).To(HaveLen(1))
			Expect(denials[0].Detail).To(Equal("/orders"))
			Expect(denials[0].HasUser()).To(BeFalse())
		})

		It("admits anonymous callers to public routes", func() {
			p, err := env.engine.Guard(ctx, "", "/login", origin)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Authenticated()).To(BeFalse())
			Expect(env.entries(audit.ActionUnauthenticated)).To(BeEmpty())
		})

		It("stops admitting a token after logout", func() {
			env.engine.Logout(ctx, managerToken)
			_, err := env.engine.Guard(ctx, managerToken, "/orders", origin)
			Expect(err).To(MatchError(core.ErrUnauthenticated))
			Expect(env.entries(audit.ActionLogout)).To(HaveLen(1))
		})
	})

	Describe("orders", func() {
		It("lets customers touch only their own orders", func() {
			alice, err := env.engine.Register(ctx, "alice@example.com", "Alice", alicePassword, alicePassword)
			Expect(err).NotTo(HaveOccurred())
			bob, err := env.engine.Register(ctx, "bob@example.com", "Bob", alicePassword, alicePassword)
			Expect(err).NotTo(HaveOccurred())

			order, err := env.engine.Orders().Create(ctx, access.ActorFor(alice), orders.Input{Description: "Widgets", Quantity: 2})
			Expect(err).NotTo(HaveOccurred())

			Expect(env.engine.AuthorizeMutate(access.ActorFor(alice), order)).To(BeTrue())
			Expect(env.engine.AuthorizeMutate(access.ActorFor(bob), order)).To(BeFalse())
			Expect(env.engine.AuthorizeList(ctx, access.ActorFor(bob))).To(BeEmpty())
			Expect(env.engine.AuthorizeList(ctx, access.ActorFor(alice))).To(HaveLen(1))
		})
	})

	Describe("sessions", func() {
		It("drops sessions of a removed user", func() {
			user, err := env.engine.Register(ctx, "carol@example.com", "Carol", alicePassword, alicePassword)
			Expect(err).NotTo(HaveOccurred())
			sess, err := env.engine.CreateSession(ctx, user)
			Expect(err).NotTo(HaveOccurred())

			Expect(env.engine.RemoveUser(ctx, user.ID)).To(Succeed())
			_, _, ok := env.engine.ResolveSession(ctx, sess.Token)
			Expect(ok).To(BeFalse())
		})
	})
})
