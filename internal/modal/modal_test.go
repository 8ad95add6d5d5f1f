package modal

// Тесты Credential Modal:
//  - локальная валидация до любого сетевого вызова (email, пароль, имя);
//  - успешный вход скрывает модалку без явного закрытия;
//  - регистрация с подтверждением: уведомление и переход на вкладку входа;
//  - защита от повторной отправки (ErrBusy);
//  - закрытие запрещено без аутентификации;
//  - смена вкладки очищает ошибку и сохраняет введённые поля.

import (
	"context"
	"sync"
	"testing"

	"github.com/pribylovaa/module-mind/internal/authstate"
	"github.com/pribylovaa/module-mind/internal/identity"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	mu            sync.Mutex
	authenticated bool
	listeners     []authstate.ChangeListener
	calls         int

	signIn func(ctx context.Context, email, password string) error
	signUp func(ctx context.Context, email, password, name string) (authstate.SignUpStatus, error)
}

func (f *fakeAuth) Authenticated() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.authenticated
}

func (f *fakeAuth) OnChange(fn authstate.ChangeListener) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

func (f *fakeAuth) SignIn(ctx context.Context, email, password string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.signIn != nil {
		return f.signIn(ctx, email, password)
	}

	f.set(ctx, true)
	return nil
}

func (f *fakeAuth) SignUp(ctx context.Context, email, password, name string) (authstate.SignUpStatus, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.signUp != nil {
		return f.signUp(ctx, email, password, name)
	}

	f.set(ctx, true)
	return authstate.SignUpSignedIn, nil
}

func (f *fakeAuth) set(ctx context.Context, authenticated bool) {
	f.mu.Lock()
	f.authenticated = authenticated
	ls := append([]authstate.ChangeListener(nil), f.listeners...)
	f.mu.Unlock()

	for _, l := range ls {
		l(ctx, authenticated)
	}
}

func (f *fakeAuth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSubmit_LocalValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mode    Mode
		in      Fields
		field   string
		message string
	}{
		{"email_without_at", ModeSignIn, Fields{Email: "bad", Password: "abcdef"}, "email", MsgInvalidEmail},
		{"email_empty", ModeSignIn, Fields{Email: " ", Password: "abcdef"}, "email", MsgInvalidEmail},
		{"email_with_space", ModeSignIn, Fields{Email: "a b@c.d", Password: "abcdef"}, "email", MsgInvalidEmail},
		{"short_password_sign_up", ModeRegister, Fields{Email: "a@b.com", Password: "12345", DisplayName: "Ann"}, "password", MsgShortPassword},
		{"missing_name", ModeRegister, Fields{Email: "a@b.com", Password: "abcdef", DisplayName: "  "}, "display_name", MsgMissingName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			auth := &fakeAuth{}
			m := New(auth)
			require.NoError(t, m.SwitchMode(tt.mode, Fields{}))

			_, err := m.Submit(context.Background(), tt.in)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.Equal(t, tt.field, ve.Field)
			require.Equal(t, tt.message, ve.Message)
			require.Zero(t, auth.callCount())
			require.Equal(t, tt.message, m.View().Error)
		})
	}
}

func TestSubmit_ValidEmailShapes(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	m := New(auth)

	out, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSignedIn, out)
}

func TestSubmit_SignInHidesModal(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	m := New(auth)
	require.True(t, m.View().Visible)
	require.False(t, m.View().Dismissible)

	out, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSignedIn, out)

	v := m.View()
	require.False(t, v.Visible)
	require.Empty(t, v.Error)

	auth.set(context.Background(), false)
	require.True(t, m.View().Visible)
}

func TestSubmit_ProviderErrorMessage(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{signIn: func(context.Context, string, string) error {
		return &identity.AuthError{Kind: identity.KindInvalidCredentials, Raw: "Invalid login credentials"}
	}}
	m := New(auth)

	_, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef"})
	require.True(t, identity.IsKind(err, identity.KindInvalidCredentials))

	v := m.View()
	require.True(t, v.Visible)
	require.False(t, v.Busy)
	require.Equal(t, "Invalid email or password.", v.Error)
}

func TestSubmit_RegisterConfirmationRequired(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{signUp: func(context.Context, string, string, string) (authstate.SignUpStatus, error) {
		return authstate.SignUpConfirmationRequired, nil
	}}
	m := New(auth)
	require.NoError(t, m.SwitchMode(ModeRegister, Fields{}))

	out, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef", DisplayName: "Ann"})
	require.NoError(t, err)
	require.Equal(t, OutcomeConfirmationRequired, out)

	v := m.View()
	require.True(t, v.Visible)
	require.Equal(t, ModeSignIn, v.Mode)
	require.Equal(t, ConfirmationNotice, v.Notice)
	require.Empty(t, v.Error)
	require.Equal(t, "a@b.com", v.Email)
}

func TestSubmit_BusyGuard(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	auth := &fakeAuth{}
	auth.signIn = func(ctx context.Context, _, _ string) error {
		close(entered)
		<-release
		auth.set(ctx, true)
		return nil
	}
	m := New(auth)

	done := make(chan error, 1)
	go func() {
		_, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef"})
		done <- err
	}()

	<-entered
	v := m.View()
	require.True(t, v.Busy)
	require.True(t, v.Disabled)

	_, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "abcdef"})
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, m.SwitchMode(ModeRegister, Fields{}), ErrBusy)

	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 1, auth.callCount())
	require.False(t, m.View().Busy)
}

func TestDismiss(t *testing.T) {
	t.Parallel()

	auth := &fakeAuth{}
	m := New(auth)
	ctx := context.Background()

	for _, r := range []DismissReason{DismissBackdrop, DismissEscape, DismissButton} {
		require.ErrorIs(t, m.Dismiss(ctx, r), ErrNotDismissible)
		require.True(t, m.View().Visible)
	}

	auth.set(ctx, true)
	require.NoError(t, m.Dismiss(ctx, DismissEscape))
	require.False(t, m.View().Visible)
}

func TestSwitchMode_ClearsErrorKeepsFields(t *testing.T) {
	t.Parallel()

	m := New(&fakeAuth{})

	_, err := m.Submit(context.Background(), Fields{Email: "a@b.com", Password: "123"})
	require.Error(t, err)
	require.NotEmpty(t, m.View().Error)

	require.NoError(t, m.SwitchMode(ModeRegister, Fields{DisplayName: "Ann"}))

	v := m.View()
	require.Equal(t, ModeRegister, v.Mode)
	require.Empty(t, v.Error)
	require.Equal(t, "a@b.com", v.Email)
	require.Equal(t, "Ann", v.DisplayName)

	require.ErrorIs(t, m.SwitchMode(Mode("other"), Fields{}), ErrInvalidMode)
}
