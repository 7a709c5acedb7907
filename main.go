package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
	"github.com/spf13/cobra"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline"
	"github.com/spance/dermascan-go/pipeline/advisor"
	"github.com/spance/dermascan-go/pipeline/android"
	"github.com/spance/dermascan-go/pipeline/definitions"
	"github.com/spance/dermascan-go/pipeline/helper"
	"github.com/spance/dermascan-go/utils"
)

// Config holds all the configuration values from command line arguments
type Config struct {
	BaseURL       string        `json:"base_url"`
	UserID        string        `json:"user_id"`
	DeviceType    string        `json:"device_type"`
	DeviceID      string        `json:"device_id"`
	FrontImage    string        `json:"front_image"`
	BackImage     string        `json:"back_image"`
	DenyCamera    bool          `json:"deny_camera"`
	Lens          string        `json:"lens"`
	Flash         string        `json:"flash"`
	PhotoDir      string        `json:"photo_dir"`
	OutDir        string        `json:"out_dir"`
	Timeout       time.Duration `json:"timeout"`
	FailureWindow time.Duration `json:"failure_window"`
	Gallery       string        `json:"gallery"`
	ListDevices   bool          `json:"list_devices"`
	Lang          string        `json:"lang"`
	SkipRules     bool          `json:"skip_rules"`

	AdvisorBaseURL string `json:"advisor_base_url"`
	AdvisorModel   string `json:"advisor_model"`
	AdvisorAPIKey  string `json:"-"`

	Debug bool `json:"debug"`
}

var rootCmd = &cobra.Command{
	Use:   "dermascan",
	Short: "DermaScan - capture a face photo and get a skin diagnosis",
	Long: `DermaScan captures a face photo from an Android device (via ADB) or a
still image, uploads it to the diagnosis service and saves the processed result.`,
	Example: `  # Interactive session with the first ADB device
  go run main.go --base-url http://192.168.1.10:8000

  # Diagnose a photo from disk and exit
  go run main.go --gallery ./face.jpg --out-dir ./results

  # Use still images instead of a phone camera
  go run main.go --device-type still --front-image ./front.jpg --back-image ./back.jpg

  # List connected devices
  go run main.go --list-devices

  # Ask a vision model for care notes after each result
  go run main.go --advisor-base-url https://api.openai.com/v1 --advisor-apikey sk-xxxxx`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Configuration: %s\n", utils.JsonIndent(config))
	},
}

var config = &Config{}

// Helper function to get environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Helper function to get environment variable as int with default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// Helper function to get environment variable as float32 with default value
func getEnvFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatValue)
		}
	}
	return defaultValue
}

// Helper function to get environment variable as duration with default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func init() {
	// Service options
	rootCmd.PersistentFlags().StringVar(&config.BaseURL, "base-url",
		getEnv("DERMASCAN_BASE_URL", constants.DefaultBaseURL),
		"Diagnosis service base URL")

	rootCmd.PersistentFlags().StringVar(&config.UserID, "user-id",
		getEnv("DERMASCAN_USER_ID", constants.DefaultCallerID),
		"Caller id sent with every upload")

	rootCmd.PersistentFlags().DurationVar(&config.Timeout, "timeout",
		getEnvDuration("DERMASCAN_TIMEOUT", constants.DefaultReadTimeout),
		"Connect, write and read timeout of the diagnosis service")

	rootCmd.PersistentFlags().DurationVar(&config.FailureWindow, "failure-window",
		getEnvDuration("DERMASCAN_FAILURE_WINDOW", constants.DefaultFailureWindow),
		"How long a failure stays on screen before returning to idle")

	// Device options
	rootCmd.PersistentFlags().StringVar(&config.DeviceType, "device-type",
		getEnv("DERMASCAN_DEVICE_TYPE", constants.ADB),
		"Device type: adb for an Android phone, still for image files (default: adb)")

	rootCmd.PersistentFlags().StringVarP(&config.DeviceID, "device-id", "d",
		getEnv("DERMASCAN_DEVICE_ID", ""),
		"ADB device ID; host:port devices are connected first")

	rootCmd.PersistentFlags().StringVar(&config.FrontImage, "front-image",
		getEnv("DERMASCAN_FRONT_IMAGE", ""),
		"Image served by the front lens (still device)")

	rootCmd.PersistentFlags().StringVar(&config.BackImage, "back-image",
		getEnv("DERMASCAN_BACK_IMAGE", ""),
		"Image served by the back lens (still device)")

	rootCmd.PersistentFlags().BoolVar(&config.DenyCamera, "deny-camera", false,
		"Still device refuses camera access")

	rootCmd.PersistentFlags().StringVar(&config.Lens, "lens",
		getEnv("DERMASCAN_LENS", string(definitions.LensFront)),
		"Initial lens: front or back")

	rootCmd.PersistentFlags().StringVar(&config.Flash, "flash",
		getEnv("DERMASCAN_FLASH", string(definitions.FlashOff)),
		"Flash mode: off, on or auto")

	rootCmd.PersistentFlags().BoolVar(&config.ListDevices, "list-devices", false,
		"List connected devices and exit")

	// Files
	rootCmd.PersistentFlags().StringVar(&config.PhotoDir, "photo-dir",
		getEnv("DERMASCAN_PHOTO_DIR", filepath.Join(os.TempDir(), "dermascan")),
		"Where captured photos are written before upload")

	rootCmd.PersistentFlags().StringVar(&config.OutDir, "out-dir",
		getEnv("DERMASCAN_OUT_DIR", "."),
		"Where processed results are saved")

	rootCmd.PersistentFlags().StringVar(&config.Gallery, "gallery", "",
		"Diagnose this image file and exit")

	// Advisor options
	rootCmd.PersistentFlags().StringVar(&config.AdvisorBaseURL, "advisor-base-url",
		getEnv("DERMASCAN_ADVISOR_BASE_URL", constants.DefaultAdvisorBaseURL),
		"OpenAI-compatible base URL for care notes (disabled when empty)")

	rootCmd.PersistentFlags().StringVar(&config.AdvisorModel, "advisor-model",
		getEnv("DERMASCAN_ADVISOR_MODEL", constants.DefaultAdvisorModel),
		"Model name for care notes")

	rootCmd.PersistentFlags().StringVar(&config.AdvisorAPIKey, "advisor-apikey",
		getEnv("DERMASCAN_ADVISOR_API_KEY", "EMPTY"),
		"API key for the care notes model")

	// Other options
	rootCmd.PersistentFlags().StringVar(&config.Lang, "lang",
		getEnv("DERMASCAN_LANG", "en"),
		"Language for messages (cn or en, default: en)")

	rootCmd.PersistentFlags().BoolVar(&config.SkipRules, "skip-rules", false,
		"Do not print the capture rules at start")

	rootCmd.PersistentFlags().BoolVar(&config.Debug, "debug", false,
		"Enable debug mode (default: false)")
}

func main() {
	parseArgs()

	// Configure zerolog
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if config.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx := context.Background()

	device, err := pipeline.CreateDevice(config.DeviceType, pipeline.DeviceOptions{
		DeviceID:   config.DeviceID,
		FrontImage: config.FrontImage,
		BackImage:  config.BackImage,
		DenyAccess: config.DenyCamera,
	})
	if err != nil {
		log.Error().Err(err).Msg("creating device failed")
		os.Exit(1)
	}

	if hitCmd := handleDeviceCommands(ctx, device); hitCmd {
		return
	}

	if passed := preflight(ctx, device); !passed {
		os.Exit(1)
	}

	advisorConfig := &definitions.AdvisorConfig{
		BaseURL:     config.AdvisorBaseURL,
		ModelName:   config.AdvisorModel,
		APIKey:      config.AdvisorAPIKey,
		Lang:        config.Lang,
		MaxTokens:   getEnvInt("DERMASCAN_ADVISOR_MAX_TOKENS", constants.DefaultAdvisorMaxTokens),
		Temperature: getEnvFloat32("DERMASCAN_ADVISOR_TEMPERATURE", 0.3),
	}
	var careAdvisor *advisor.Advisor
	if advisorConfig.Enabled() {
		if checkAdvisorAPI(ctx, advisorConfig) {
			careAdvisor = advisor.NewAdvisor(advisorConfig)
		} else {
			log.Warn().Msg("care notes disabled")
		}
	}

	lens, _ := definitions.ParseLensFacing(config.Lens)
	flash, _ := definitions.ParseFlashMode(config.Flash)
	p := pipeline.NewFromDevice(device,
		&definitions.PipelineConfig{
			CallerID:      config.UserID,
			Lens:          lens,
			Flash:         flash,
			FailureWindow: config.FailureWindow,
			Lang:          config.Lang,
		},
		&definitions.ClientConfig{
			BaseURL:        config.BaseURL,
			ConnectTimeout: config.Timeout,
			ReadTimeout:    config.Timeout,
			WriteTimeout:   config.Timeout,
		},
		config.PhotoDir,
	)
	defer p.Exit()

	printConfiguration(ctx, device)

	if config.Gallery != "" {
		if err := runOnce(p, careAdvisor, config.Gallery); err != nil {
			log.Error().Err(err).Msg("diagnosis failed")
			p.Exit()
			os.Exit(1)
		}
		return
	}

	printCaptureRules()
	runInteractive(ctx, p, careAdvisor)
}

func parseArgs() *Config {
	// Set pre-run validation
	rootCmd.PersistentPreRunE = validateArgs

	// Execute the command
	cobra.CheckErr(rootCmd.Execute())

	return config
}

func validateArgs(cmd *cobra.Command, args []string) error {
	if config.Lang != "cn" && config.Lang != "en" {
		return fmt.Errorf("invalid language option: %s. Must be 'cn' or 'en'", config.Lang)
	}
	if !lo.Contains([]string{constants.ADB, constants.STILL}, config.DeviceType) {
		return fmt.Errorf("invalid device type: %s. Must be 'adb' or 'still'", config.DeviceType)
	}
	if _, err := definitions.ParseLensFacing(config.Lens); err != nil {
		return err
	}
	if _, err := definitions.ParseFlashMode(config.Flash); err != nil {
		return err
	}
	if config.Timeout <= 0 || config.FailureWindow <= 0 {
		return errors.New("--timeout and --failure-window must be positive")
	}
	return nil
}

func handleDeviceCommands(ctx context.Context, device pipeline.Device) bool {
	if adb, ok := device.(*android.ADBDevice); ok && strings.Contains(adb.DeviceID(), ":") {
		log.Info().Msgf("Connecting to %s...", adb.DeviceID())
		message, err := adb.Connect(ctx, adb.DeviceID())
		if err != nil {
			log.Error().Err(err).Msg("❌")
		} else {
			log.Info().Str("msg", message).Msg("✅")
		}
	}

	if !config.ListDevices {
		return false
	}

	devices, err := device.ListDevices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list devices")
		return true
	}
	if len(devices) == 0 {
		log.Info().Msg(helper.GetMessage("no_devices", config.Lang))
		return true
	}
	log.Info().Msg(helper.GetMessage("device_list", config.Lang))
	log.Info().Msg(strings.Repeat("-", 60))
	for _, d := range devices {
		statusIcon := "✅"
		if !d.Ready() {
			statusIcon = "❌"
		}
		modelInfo := ""
		if d.Model != "" {
			modelInfo = fmt.Sprintf(" (%s)", d.Model)
		}
		log.Info().Str("device", fmt.Sprintf("  %s %-30s [%s]%s", statusIcon, d.DeviceID, d.ConnectionType, modelInfo)).Msg("")
	}
	return true
}

// preflight runs the system checks. A one-shot gallery run never opens the
// camera, so failed device checks only warn there.
func preflight(ctx context.Context, device pipeline.Device) bool {
	if checkSystemRequirements(ctx, device) {
		return true
	}
	if config.Gallery != "" {
		log.Warn().Msg("⚠️ Device checks failed, continuing with the gallery image")
		return true
	}
	log.Error().Msg("❌ System check failed. Please fix the issues above.")
	return false
}

func checkSystemRequirements(ctx context.Context, device pipeline.Device) bool {
	log.Info().Msg("🔍 Checking system requirements...")
	log.Info().Msg(strings.Repeat("-", 50))

	if config.DeviceType == constants.ADB {
		log.Info().Msg("1. Checking ADB installation... ")
		if _, err := exec.LookPath("adb"); err != nil {
			log.Error().Msg("❌ FAILED")
			log.Info().Msg("   Error: ADB is not installed or not in PATH.")
			log.Info().Msg("   Solution: Install Android SDK Platform Tools")
			return false
		}
		log.Info().Msg("✅ OK")
	}

	log.Info().Msg("2. Checking connected devices... ")
	devices, err := device.ListDevices(ctx)
	if err != nil {
		log.Error().Err(err).Msg("❌ FAILED")
		return false
	}
	ready := lo.Filter(devices, func(d definitions.DeviceInfo, _ int) bool { return d.Ready() })
	if len(ready) == 0 {
		log.Error().Msg("❌ FAILED")
		log.Info().Msg("   Error: No devices ready.")
		log.Info().Msg("   Solution: connect a device and accept the debugging prompt")
		return false
	}
	log.Info().Msgf("✅ OK (%d device(s): %s)", len(ready), strings.Join(lo.Map(ready, func(d definitions.DeviceInfo, _ int) string {
		return d.DeviceID
	}), ", "))

	log.Info().Msg(strings.Repeat("-", 50))
	log.Info().Msg("✅ All system checks passed!")
	return true
}

func checkAdvisorAPI(ctx context.Context, cfg *definitions.AdvisorConfig) bool {
	log.Info().Msgf("🔍 Checking care notes API (%s)... ", cfg.BaseURL)

	openaiCfg := openai.DefaultConfig(cfg.APIKey)
	openaiCfg.BaseURL = cfg.BaseURL
	client := openai.NewClientWithConfig(openaiCfg)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: cfg.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: "please return hello world"},
		},
		MaxCompletionTokens: 5,
	})
	if err != nil {
		log.Error().Err(err).Msg("❌ FAILED")
		return false
	}
	if len(resp.Choices) == 0 {
		log.Error().Msg("❌ FAILED: received empty response from API")
		return false
	}
	log.Info().Msg("✅ OK")
	return true
}

// printConfiguration prints the configuration information
func printConfiguration(ctx context.Context, device pipeline.Device) {
	log.Info().Msg(strings.Repeat("=", 50))
	log.Info().Msg("DermaScan - skin diagnosis")
	log.Info().Msg(strings.Repeat("=", 50))
	log.Info().Msgf("Service: %s", config.BaseURL)
	log.Info().Msgf("User: %s", config.UserID)
	log.Info().Msgf("Language: %s", config.Lang)
	log.Info().Msgf("Device Type: %s", strings.ToUpper(config.DeviceType))
	if devices, err := device.ListDevices(ctx); err == nil && len(devices) > 0 {
		log.Info().Msgf("Device: %s", devices[0].DeviceID)
	}
	if config.AdvisorBaseURL != "" {
		log.Info().Msgf("Care notes: %s (%s)", config.AdvisorBaseURL, config.AdvisorModel)
	}
	log.Debug().Msgf("Configuration: %s", utils.JsonIndent(config))
	log.Info().Msg(strings.Repeat("=", 50))
}

func printCaptureRules() {
	if config.SkipRules {
		return
	}
	rules, ok := constants.CaptureRules(config.Lang)
	if !ok {
		return
	}
	fmt.Println(rules.Title)
	for _, rule := range rules.Rules {
		fmt.Printf("  • %s\n", rule)
	}
	fmt.Println()
}

// runOnce diagnoses one image file and saves the result.
func runOnce(p *pipeline.Pipeline, careAdvisor *advisor.Advisor, path string) error {
	updates, stop := p.Subscribe()
	defer stop()

	if err := p.TriggerGallery(path); err != nil {
		return err
	}
	for phase := range updates {
		log.Info().Msg(helper.PhaseLine(phase, config.Lang))
		switch phase.Kind {
		case definitions.PhaseResultReady:
			return proceed(p, careAdvisor)
		case definitions.PhaseFailed:
			if phase.Err != nil {
				return phase.Err
			}
			return errors.New(helper.GetMessage("phase_failed", config.Lang))
		}
	}
	return definitions.ErrExited
}

func runInteractive(ctx context.Context, p *pipeline.Pipeline, careAdvisor *advisor.Advisor) {
	updates, stop := p.Subscribe()
	defer stop()
	go func() {
		for phase := range updates {
			fmt.Println(helper.PhaseLine(phase, config.Lang))
		}
	}()

	if err := p.OnVisible(ctx); err != nil {
		log.Warn().Err(err).Msg("camera unavailable")
	}

	log.Info().Msg("Entering interactive mode. Type 'help' for commands, 'quit' to exit.")
	fmt.Println(helper.GetMessage("help", config.Lang))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}

		command, err := helper.ParseCommand(scanner.Text())
		if err != nil {
			fmt.Printf("%s: %v (%s)\n", helper.GetMessage("unknown_command", config.Lang), err, strings.Join(helper.CommandNames(), ", "))
			continue
		}
		if command.Name == "quit" {
			break
		}
		if err := dispatch(ctx, p, careAdvisor, command); err != nil {
			if errors.Is(err, definitions.ErrPipelineBusy) {
				fmt.Println(helper.GetMessage("busy", config.Lang))
				continue
			}
			fmt.Printf("❌ %v\n", err)
		}
	}

	p.Exit()
	log.Info().Msg("Goodbye!")
}

func dispatch(ctx context.Context, p *pipeline.Pipeline, careAdvisor *advisor.Advisor, command helper.Command) error {
	switch command.Name {
	case "capture":
		return p.TriggerCapture()
	case "pick":
		return p.TriggerGallery(command.Args[0])
	case "switch":
		return p.SwitchLens(ctx)
	case "dismiss":
		return p.Dismiss()
	case "retake":
		return p.Retake()
	case "proceed":
		return proceed(p, careAdvisor)
	case "grant":
		return p.Recheck(ctx)
	case "hide":
		return p.OnHidden()
	case "show":
		return p.OnVisible(ctx)
	case "status":
		phase := p.Phase()
		fmt.Println(helper.PhaseLine(phase, config.Lang))
		fmt.Println(utils.JsonIndent(phase.View()))
		return nil
	case "help":
		fmt.Println(helper.GetMessage("help", config.Lang))
		return nil
	}
	return fmt.Errorf("unhandled command %s", command.Name)
}

// proceed saves the result image and, when configured, prints care notes.
func proceed(p *pipeline.Pipeline, careAdvisor *advisor.Advisor) error {
	bitmap, err := p.Proceed()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(config.OutDir, 0o755); err != nil {
		return err
	}
	name := fmt.Sprintf("result_%s_%s.png", time.Now().Format(constants.PhotoFileLayout), uuid.New().String()[:8])
	path := filepath.Join(config.OutDir, name)
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, bitmap.Image); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Msgf("🎉 %s %s", helper.GetMessage("result_saved", config.Lang), path)

	if careAdvisor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	advice, err := careAdvisor.Advise(ctx, bitmap)
	if err != nil {
		return fmt.Errorf("care notes: %w", err)
	}
	fmt.Printf("\n%s:\n%s\n\n", helper.GetMessage("advice", config.Lang), advice.Text)
	log.Debug().Msgf("%s: %.3fs", helper.GetMessage("total_time", config.Lang), advice.TotalTime)
	return nil
}
