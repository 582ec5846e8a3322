package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"abaquest/internal/catalog"
	"abaquest/internal/config"
	"abaquest/internal/logger"
	"abaquest/internal/models"
	"abaquest/internal/security"
	"abaquest/internal/service"
	"abaquest/internal/storage"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Commands that need no storage
	switch os.Args[1] {
	case "hash":
		hashCmd := flag.NewFlagSet("hash", flag.ExitOnError)
		pattern := hashCmd.String("pattern", "", "Bead pattern, e.g. 1-2-3 (required)")
		hashCmd.Parse(os.Args[2:])
		handleHash(*pattern)
		return
	case "pin-hash":
		pinCmd := flag.NewFlagSet("pin-hash", flag.ExitOnError)
		pin := pinCmd.String("pin", "", "Teacher PIN (required)")
		pinCmd.Parse(os.Args[2:])
		handlePinHash(*pin)
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fatalf("Failed to load configuration: %v", err)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	defer log.Sync()

	ctx := context.Background()
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		fatalf("Failed to open storage: %v", err)
	}
	defer backend.Close()

	identity := service.NewIdentityService(backend.Documents, log)
	backupService := service.NewBackupService(backend.Documents, backend.Interactions, log)

	switch os.Args[1] {
	case "backup":
		handleBackup(ctx, backupService, os.Args[2:])

	case "export-analytics":
		exportCmd := flag.NewFlagSet("export-analytics", flag.ExitOnError)
		student := exportCmd.String("student", "", "Student profile ID (required)")
		quest := exportCmd.Int("quest", 1, "Quest ID recorded in the export")
		format := exportCmd.String("format", "json", "Output format: json or xlsx")
		output := exportCmd.String("output", "", "Output file path (default: abaquest_<name>_<ms>.<format>)")
		exportCmd.Parse(os.Args[2:])
		if *student == "" {
			fmt.Println("Error: -student flag is required")
			exportCmd.PrintDefaults()
			os.Exit(1)
		}
		quests, err := catalog.LoadFile(cfg.CatalogPath)
		if err != nil {
			fatalf("Failed to load quest catalog: %v", err)
		}
		deps := service.LearnerDeps{
			Catalog:      quests,
			Documents:    backend.Documents,
			Interactions: backend.Interactions,
			Logger:       log,
		}
		handleExportAnalytics(ctx, identity, deps, *student, models.QuestID(*quest), *format, *output)

	case "reset-pass":
		resetCmd := flag.NewFlagSet("reset-pass", flag.ExitOnError)
		student := resetCmd.String("student", "", "Student profile ID (required)")
		resetCmd.Parse(os.Args[2:])
		if *student == "" {
			fmt.Println("Error: -student flag is required")
			resetCmd.PrintDefaults()
			os.Exit(1)
		}
		if err := identity.ResetBeadPass(ctx, *student); err != nil {
			fatalf("Reset failed: %v", err)
		}
		fmt.Printf("Bead pass for %s reset to %s\n", *student, security.FormatPattern(security.DefaultResetPattern))

	case "create-profile":
		createCmd := flag.NewFlagSet("create-profile", flag.ExitOnError)
		name := createCmd.String("name", "", "Display name (required)")
		grade := createCmd.String("grade", string(models.GradeK), "Grade level: K or 1-2")
		role := createCmd.String("role", string(models.RoleStudent), "Role: student or teacher")
		pattern := createCmd.String("pattern", "", "Bead pattern, e.g. 4-1-7 (default: generated)")
		createCmd.Parse(os.Args[2:])
		handleCreateProfile(ctx, identity, *name, *grade, *role, *pattern)

	case "roster":
		roster, err := identity.Roster(ctx)
		if err != nil {
			fatalf("Failed to load roster: %v", err)
		}
		for _, p := range roster {
			fmt.Printf("%-38s %-16s level %-3d coins %-5d completed %v\n", p.ID, p.Name, p.Level, p.TotalCoins, p.CompletedQuests)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleBackup(ctx context.Context, backupService *service.BackupService, args []string) {
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	exportCmd := flag.NewFlagSet("backup export", flag.ExitOnError)
	exportOutput := exportCmd.String("output", "", "Output file path (default: abaquest_backup_YYYYMMDD_HHMMSS.json)")
	importCmd := flag.NewFlagSet("backup import", flag.ExitOnError)
	importInput := importCmd.String("input", "", "Input file path (required)")

	switch args[0] {
	case "export":
		exportCmd.Parse(args[1:])
		outputPath := *exportOutput
		if outputPath == "" {
			outputPath = fmt.Sprintf("abaquest_backup_%s.json", time.Now().Format("20060102_150405"))
		}
		ensureDir(outputPath)
		fmt.Printf("Exporting learner data to: %s\n", outputPath)
		if err := backupService.Export(ctx, outputPath); err != nil {
			fatalf("Export failed: %v", err)
		}
		fileInfo, _ := os.Stat(outputPath)
		fmt.Printf("Export complete! File size: %.2f KB\n", float64(fileInfo.Size())/1024)

	case "import":
		importCmd.Parse(args[1:])
		if *importInput == "" {
			fmt.Println("Error: -input flag is required")
			importCmd.PrintDefaults()
			os.Exit(1)
		}
		if _, err := os.Stat(*importInput); os.IsNotExist(err) {
			fatalf("Input file does not exist: %s", *importInput)
		}
		fmt.Print("WARNING: This replaces the stored roster, progress and interaction logs. Type 'yes' to confirm: ")
		var confirmation string
		fmt.Scanln(&confirmation)
		if confirmation != "yes" {
			fmt.Println("Import cancelled")
			return
		}
		if err := backupService.Import(ctx, *importInput); err != nil {
			fatalf("Import failed: %v", err)
		}
		fmt.Println("Import complete!")

	default:
		printUsage()
		os.Exit(1)
	}
}

func handleExportAnalytics(ctx context.Context, identity *service.IdentityService, deps service.LearnerDeps, studentID string, questID models.QuestID, format, outputPath string) {
	profile, err := identity.Profile(ctx, studentID)
	if err != nil {
		fatalf("Failed to find profile %s: %v", studentID, err)
	}
	learner, err := service.OpenLearner(ctx, deps, profile)
	if err != nil {
		fatalf("Failed to load learner: %v", err)
	}
	doc := learner.Export(questID)

	var write func(f *os.File) error
	switch format {
	case "json":
		write = func(f *os.File) error { return service.WriteJSON(f, doc) }
	case "xlsx":
		write = func(f *os.File) error { return service.WriteWorkbook(f, doc) }
	default:
		fatalf("Unsupported format: %s", format)
	}
	if outputPath == "" {
		outputPath = service.ExportFilename(doc, format)
	}
	ensureDir(outputPath)

	f, err := os.Create(outputPath)
	if err != nil {
		fatalf("Failed to create %s: %v", outputPath, err)
	}
	if err := write(f); err != nil {
		f.Close()
		fatalf("Export failed: %v", err)
	}
	if err := f.Close(); err != nil {
		fatalf("Failed to write %s: %v", outputPath, err)
	}
	fmt.Printf("Wrote %d interactions to %s\n", doc.Summary.TotalInteractions, outputPath)
}

func handleCreateProfile(ctx context.Context, identity *service.IdentityService, name, grade, role, pattern string) {
	var beads []int
	if pattern != "" {
		parsed, err := security.ParsePattern(pattern)
		if err != nil {
			fatalf("Invalid pattern: %v", err)
		}
		beads = parsed
	}
	profile, beads, err := identity.CreateProfile(ctx, service.NewProfileInput{
		Name:       name,
		GradeLevel: models.GradeLevel(grade),
		Role:       models.Role(role),
		Pattern:    beads,
	})
	if err != nil {
		fatalf("Failed to create profile: %v", err)
	}
	fmt.Printf("Created %s (%s) with bead pattern %s\n", profile.Name, profile.ID, security.FormatPattern(beads))
}

func handleHash(pattern string) {
	beads, err := security.ParsePattern(pattern)
	if err != nil {
		fatalf("Invalid pattern: %v", err)
	}
	fmt.Println(security.HashBeadPattern(beads))
}

func handlePinHash(pin string) {
	if pin == "" {
		fatalf("Error: -pin flag is required")
	}
	hash, err := security.HashPassword(pin)
	if err != nil {
		fatalf("Failed to hash PIN: %v", err)
	}
	fmt.Println(hash)
}

func ensureDir(path string) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fatalf("Failed to create output directory: %v", err)
		}
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Println("AbaQuest Admin Tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  admin backup export [-output <file>]")
	fmt.Println("  admin backup import -input <file>")
	fmt.Println("  admin export-analytics -student <id> [-quest <n>] [-format json|xlsx] [-output <file>]")
	fmt.Println("  admin roster")
	fmt.Println("  admin create-profile -name <name> [-grade K|1-2] [-role student|teacher] [-pattern 4-1-7]")
	fmt.Println("  admin reset-pass -student <id>")
	fmt.Println("  admin hash -pattern <1-2-3>")
	fmt.Println("  admin pin-hash -pin <pin>")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  admin backup export -output backups/classroom.json")
	fmt.Println("  admin export-analytics -student s1 -format xlsx")
	fmt.Println("  OPERATOR_PIN_HASH=$(admin pin-hash -pin 2468) ./server")
}
