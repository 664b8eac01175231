package flows

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lewisedginton/wallet_chatbot/internal/finance"
	"github.com/lewisedginton/wallet_chatbot/internal/session"
)

// Onboarding states.
const (
	StateAwaitingPhone       = "awaiting_phone"
	StateAwaitingPIN         = "awaiting_pin"
	StateSelectingOTPChannel = "selecting_otp_channel"
	StateAwaitingOTP         = "awaiting_otp"
	StateAwaitingName        = "awaiting_name"
)

const actionOTPChannel = "otp_channel"

// OnboardingData is the add_wallet session payload.
type OnboardingData struct {
	Phone       string             `json:"phone,omitempty"`
	PIN         string             `json:"pin,omitempty"`
	Channel     finance.OTPChannel `json:"channel,omitempty"`
	ReferenceID string             `json:"reference_id,omitempty"`
	OTP         string             `json:"otp,omitempty"`
}

var channelAliases = map[string]string{
	"sms":      string(finance.ChannelSMS),
	"whatsapp": string(finance.ChannelWhatsApp),
	"wa":       string(finance.ChannelWhatsApp),
}

// Onboarding links a new e-wallet: phone, PIN, OTP channel, OTP, name.
type Onboarding struct {
	machine
	finance finance.Client
}

// NewOnboarding creates the add_wallet flow.
func NewOnboarding(client finance.Client) *Onboarding {
	f := &Onboarding{finance: client}
	f.machine = machine{
		kind:  session.KindAddWallet,
		start: f.start,
		steps: map[string]stepFunc{
			StateAwaitingPhone:       f.phone,
			StateAwaitingPIN:         f.pin,
			StateSelectingOTPChannel: f.channel,
			StateAwaitingOTP:         f.otp,
			StateAwaitingName:        f.name,
		},
	}
	return f
}

func (f *Onboarding) start(_ context.Context, _ *StepContext) (Outcome, error) {
	return advanceTo(StateAwaitingPhone, nil, Reply{
		Text: "Let's link a new wallet.\nSend the wallet's phone number, e.g. 081234567890.",
	}), nil
}

func (f *Onboarding) phone(_ context.Context, _ *StepContext, in Input) (Outcome, error) {
	phone, err := NormalizePhone(in.Text)
	if err != nil {
		return reprompt(err.Error()), nil
	}
	return advanceTo(StateAwaitingPIN,
		session.MustEncode(OnboardingData{Phone: phone}),
		Reply{Text: "Now send the wallet's 6-digit PIN. The message will be deleted after it is read."},
	), nil
}

func (f *Onboarding) pin(_ context.Context, sc *StepContext, in Input) (Outcome, error) {
	pin, err := ValidatePIN(in.Text)
	if err != nil {
		return reprompt(err.Error()).redacted(), nil
	}
	return advanceTo(StateSelectingOTPChannel,
		session.MustEncode(OnboardingData{PIN: pin}),
		Reply{
			Text: "Where should we send the OTP?",
			Keyboard: [][]Button{{
				sc.Choice("SMS", Selection{Action: actionOTPChannel, Value: string(finance.ChannelSMS)}),
				sc.Choice("WhatsApp", Selection{Action: actionOTPChannel, Value: string(finance.ChannelWhatsApp)}),
			}},
		},
	).redacted(), nil
}

func (f *Onboarding) channel(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	value, ok := selected(in, actionOTPChannel, channelAliases)
	if !ok {
		return reprompt("Choose SMS or WhatsApp using the buttons above."), nil
	}
	channel := finance.OTPChannel(value)

	var data OnboardingData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}

	issue, err := f.finance.RequestOTP(ctx, finance.OTPRequest{
		Phone:   data.Phone,
		PIN:     data.PIN,
		Channel: channel,
	})
	if err != nil {
		return fail("request OTP", err), nil
	}

	// The PIN is only needed to issue the OTP.
	patch := session.MustEncode(OnboardingData{Channel: channel, ReferenceID: issue.ReferenceID})
	patch["pin"] = json.RawMessage(`""`)
	return advanceTo(StateAwaitingOTP, patch, Reply{
		Text: fmt.Sprintf("We sent an OTP by %s. Send the code here.", channelLabel(channel)),
	}), nil
}

func (f *Onboarding) otp(_ context.Context, _ *StepContext, in Input) (Outcome, error) {
	otp, err := ValidateOTP(in.Text)
	if err != nil {
		return reprompt(err.Error()).redacted(), nil
	}
	return advanceTo(StateAwaitingName,
		session.MustEncode(OnboardingData{OTP: otp}),
		Reply{Text: "Last step: give this wallet a name (3 to 50 characters)."},
	).redacted(), nil
}

func (f *Onboarding) name(ctx context.Context, sc *StepContext, in Input) (Outcome, error) {
	name, err := ValidateName(in.Text)
	if err != nil {
		return reprompt(err.Error()), nil
	}

	var data OnboardingData
	if err := sc.Decode(&data); err != nil {
		return Outcome{}, err
	}

	acct, err := f.finance.VerifyOTP(ctx, finance.VerifyRequest{
		ReferenceID: data.ReferenceID,
		OTP:         data.OTP,
		Name:        name,
	})
	if err != nil {
		return fail("verify OTP", err), nil
	}
	return complete(fmt.Sprintf("Wallet %q is linked. Use /accounts to see it.", acct.Name)), nil
}

func channelLabel(c finance.OTPChannel) string {
	if c == finance.ChannelWhatsApp {
		return "WhatsApp"
	}
	return "SMS"
}
